package http

import (
	"context"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/BenjaminSRussell/shelfcrawl/internal/logger"
)

// RobotsGuard answers whether a URL may be fetched according to the host's
// robots.txt. Hosts whose robots.txt cannot be fetched are allowed.
type RobotsGuard struct {
	fetcher *Fetcher
	agent   string
	log     logger.Interface

	mu    sync.Mutex
	hosts map[string]*robotstxt.Group // nil group allows everything
}

// NewRobotsGuard creates a guard that fetches robots.txt through fetcher.
func NewRobotsGuard(fetcher *Fetcher, agent string, log logger.Interface) *RobotsGuard {
	if agent == "" {
		agent = "shelfcrawl"
	}
	return &RobotsGuard{
		fetcher: fetcher,
		agent:   agent,
		log:     log,
		hosts:   make(map[string]*robotstxt.Group),
	}
}

// Allowed reports whether rawURL may be crawled.
func (g *RobotsGuard) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}

	group := g.group(ctx, u)
	if group == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return group.Test(path)
}

func (g *RobotsGuard) group(ctx context.Context, u *url.URL) *robotstxt.Group {
	g.mu.Lock()
	defer g.mu.Unlock()

	if group, ok := g.hosts[u.Host]; ok {
		return group
	}

	robotsURL := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}).String()
	var group *robotstxt.Group
	out := g.fetcher.Fetch(ctx, robotsURL, nil)
	if out.OK() {
		data, err := robotstxt.FromString(out.Content)
		if err != nil {
			g.log.Warn("bad robots.txt", zap.String("url", robotsURL), zap.Error(err))
		} else {
			group = data.FindGroup(g.agent)
		}
	} else {
		g.log.Debug("robots.txt unavailable", zap.String("url", robotsURL))
	}

	g.hosts[u.Host] = group
	return group
}
