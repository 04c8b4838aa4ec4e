package http

import (
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// BrowserProfile is a coherent set of navigation headers for one browser.
type BrowserProfile struct {
	Name            string
	UserAgent       string
	AcceptLanguage  string
	Accept          string
	SecChUA         string
	SecChUAPlatform string
	SecChUAMobile   string
	UpgradeInsecure string
}

// Accept-Encoding is left to the transport so bodies are decoded transparently.
var browserProfiles = []BrowserProfile{
	{
		Name:            "chrome-windows",
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		AcceptLanguage:  "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7",
		Accept:          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		SecChUA:         `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`,
		SecChUAPlatform: `"Windows"`,
		SecChUAMobile:   "?0",
		UpgradeInsecure: "1",
	},
	{
		Name:            "chrome-linux",
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		AcceptLanguage:  "ru-RU,ru;q=0.9,en;q=0.8",
		Accept:          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		SecChUA:         `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`,
		SecChUAPlatform: `"Linux"`,
		SecChUAMobile:   "?0",
		UpgradeInsecure: "1",
	},
	{
		Name:            "firefox-windows",
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:134.0) Gecko/20100101 Firefox/134.0",
		AcceptLanguage:  "ru-RU,ru;q=0.8,en-US;q=0.5,en;q=0.3",
		Accept:          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		UpgradeInsecure: "1",
	},
	{
		Name:           "safari-macos",
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.2 Safari/605.1.15",
		AcceptLanguage: "ru,en;q=0.9",
		Accept:         "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	},
}

// HeaderRotator picks a browser profile per request. Safe for concurrent use.
type HeaderRotator struct {
	mu       sync.Mutex
	profiles []BrowserProfile
	rnd      *rand.Rand
}

// NewHeaderRotator creates a new header rotator
func NewHeaderRotator() *HeaderRotator {
	return &HeaderRotator{
		profiles: browserProfiles,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// RandomProfile returns a random browser profile
func (hr *HeaderRotator) RandomProfile() BrowserProfile {
	hr.mu.Lock()
	defer hr.mu.Unlock()
	return hr.profiles[hr.rnd.Intn(len(hr.profiles))]
}

// Apply sets the headers of a random profile on h.
func (hr *HeaderRotator) Apply(h http.Header) {
	profile := hr.RandomProfile()

	h.Set("User-Agent", profile.UserAgent)
	h.Set("Accept", profile.Accept)
	h.Set("Accept-Language", profile.AcceptLanguage)
	h.Set("Sec-Fetch-Site", "none")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Dest", "document")

	if profile.SecChUA != "" {
		h.Set("Sec-Ch-Ua", profile.SecChUA)
		h.Set("Sec-Ch-Ua-Platform", profile.SecChUAPlatform)
		h.Set("Sec-Ch-Ua-Mobile", profile.SecChUAMobile)
	}
	if profile.UpgradeInsecure != "" {
		h.Set("Upgrade-Insecure-Requests", profile.UpgradeInsecure)
	}
}
