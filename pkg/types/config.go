package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with API requests
	// (e.g. "suppfetch/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SourceConfig holds settings for the source handler stage.
type SourceConfig struct {
	HTTPConfig `yaml:",inline"`

	// Name selects the source handler (default "ncbi").
	Name string `json:"name" yaml:"name"`

	// BaseURL overrides the upstream API root.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// FetchTimeout is the timeout for bulk full-text requests (default 30s).
	// Timeout applies to search and summary requests (default 10s).
	FetchTimeout time.Duration `json:"fetch_timeout" yaml:"fetch_timeout"`

	// MaxResults is the number of identifiers requested from search (default 10).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// BatchSize is the number of articles per full-text request (default 10).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// BatchDelay is the courtesy interval between full-text requests (default 1s).
	BatchDelay time.Duration `json:"batch_delay" yaml:"batch_delay"`

	// OpenAccessOnly restricts search to the open-access subset.
	OpenAccessOnly bool `json:"open_access_only" yaml:"open_access_only"`

	// APIKey is an optional NCBI API key for higher rate limits.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Email identifies the caller to NCBI, as E-utilities usage policy asks.
	Email string `json:"email,omitempty" yaml:"email,omitempty"`

	// DebugDir, when set, receives the raw XML of every full-text batch.
	DebugDir string `json:"debug_dir,omitempty" yaml:"debug_dir,omitempty"`
}

// CollectorConfig holds settings for link persistence and downloads.
type CollectorConfig struct {
	HTTPConfig `yaml:",inline"`

	// OutputDir is the base directory for date-keyed run folders (default "output").
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// DownloadDelay is the delay between consecutive downloads (default 500ms).
	DownloadDelay time.Duration `json:"download_delay" yaml:"download_delay"`

	// MinHTMLBytes is the size below which an HTML response is treated as an
	// error page rather than a document (default 5120).
	MinHTMLBytes int64 `json:"min_html_bytes" yaml:"min_html_bytes"`

	// DocumentExtensions is the allow-list kept by cleanup.
	DocumentExtensions []string `json:"document_extensions" yaml:"document_extensions"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is the minimum console level (debug, info, warn, error).
	Level string `json:"level" yaml:"level"`

	// Format is "console" or "json" for the terminal stream.
	Format string `json:"format" yaml:"format"`

	// Dir receives app.log and errors.log. Empty disables file logging.
	Dir string `json:"dir" yaml:"dir"`
}

// Config groups all stage configurations.
type Config struct {
	Source    SourceConfig    `json:"source" yaml:"source"`
	Collector CollectorConfig `json:"collector" yaml:"collector"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
}
