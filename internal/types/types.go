package types

import (
	"net/url"
	"strconv"
	"time"
)

// Config holds crawler configuration
type Config struct {
	BaseURL    string            `mapstructure:"base_url" json:"base_url"`
	Categories []string          `mapstructure:"categories" json:"categories,omitempty"`
	Headers    map[string]string `mapstructure:"headers" json:"headers,omitempty"`

	MaxRetries   int         `mapstructure:"max_retries" json:"max_retries"`
	Delay        DelayWindow `mapstructure:"-" json:"-"`
	Restart      Restart     `mapstructure:"restart" json:"restart"`
	Timeout      int         `mapstructure:"timeout_s" json:"timeout_s"`
	MaxRedirects int         `mapstructure:"max_redirects" json:"max_redirects"`

	LogsDir  string `mapstructure:"logs_dir" json:"logs_dir"`
	LogLevel string `mapstructure:"log_level" json:"log_level"`

	OutputDir    string   `mapstructure:"output_directory" json:"output_directory"`
	OutputFile   string   `mapstructure:"output_file" json:"output_file,omitempty"`
	Sinks        []string `mapstructure:"sinks" json:"sinks"`
	CSVDelimiter string   `mapstructure:"csv_delimiter" json:"csv_delimiter"`
	PostgresURL  string   `mapstructure:"postgres_url" json:"postgres_url,omitempty"`

	// Advanced features
	Workers           int      `mapstructure:"workers" json:"workers"`
	RequestsPerSecond float64  `mapstructure:"requests_per_second" json:"requests_per_second"`
	Proxies           []string `mapstructure:"proxies" json:"proxies,omitempty"`
	TLSProfile        string   `mapstructure:"tls_profile" json:"tls_profile,omitempty"`
	RotateHeaders     bool     `mapstructure:"rotate_headers" json:"rotate_headers"`
	RespectRobots     bool     `mapstructure:"respect_robots" json:"respect_robots"`
	RenderJS          bool     `mapstructure:"render_js" json:"render_js"`
	MetricsAddr       string   `mapstructure:"metrics_addr" json:"metrics_addr,omitempty"`
}

// Restart is the whole-run retry policy.
type Restart struct {
	Count     int     `mapstructure:"restart_count" json:"restart_count"`
	IntervalM float64 `mapstructure:"interval_m" json:"interval_m"`
}

// Cooldown converts the interval in minutes to a duration.
func (r Restart) Cooldown() time.Duration {
	return time.Duration(r.IntervalM * 60 * float64(time.Second))
}

// DelayWindow is the range a politeness delay is drawn from.
// A disabled window never sleeps.
type DelayWindow struct {
	Min      time.Duration
	Max      time.Duration
	Disabled bool
}

// Category is one node of the two-level catalog tree.
type Category struct {
	Name     string `json:"name"`
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"` // empty for roots
	Link     string `json:"link"`
}

// IsRoot reports whether the category has no parent.
func (c Category) IsRoot() bool {
	return c.ParentID == ""
}

// PageRequest addresses one page of a category listing.
type PageRequest struct {
	URL        string
	PageNumber int
}

// Params returns the query parameters for the page. Page 1 carries none.
func (p PageRequest) Params(pageParam string) url.Values {
	if p.PageNumber < 2 {
		return nil
	}
	return url.Values{pageParam: []string{strconv.Itoa(p.PageNumber)}}
}

// Results contains crawl statistics
type Results struct {
	Categories   int
	Pages        int
	PagesSkipped int
	Items        int
	ItemsSkipped int
	Accepted     int
	Duplicates   int
}

// Add accumulates other into r.
func (r *Results) Add(other Results) {
	r.Categories += other.Categories
	r.Pages += other.Pages
	r.PagesSkipped += other.PagesSkipped
	r.Items += other.Items
	r.ItemsSkipped += other.ItemsSkipped
	r.Accepted += other.Accepted
	r.Duplicates += other.Duplicates
}

// RunPhase is a state of the run supervisor.
type RunPhase string

const (
	PhaseIdle       RunPhase = "idle"
	PhaseAttempting RunPhase = "attempting"
	PhaseRetrying   RunPhase = "retrying"
	PhaseSucceeded  RunPhase = "succeeded"
	PhaseExhausted  RunPhase = "exhausted"
	PhaseCanceled   RunPhase = "canceled"
)

// RunState is owned by the run supervisor and never persisted.
type RunState struct {
	Phase       RunPhase
	Attempt     int
	MaxAttempts int
	Cooldown    time.Duration
}

// RunReport summarizes a finished run.
type RunReport struct {
	RunID       string
	State       RunState
	Results     Results
	Records     int
	Destination string
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
}
