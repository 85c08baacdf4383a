package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/nucheck/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "nucheck"

	// DefaultValidatorURL is the public Nu HTML Checker.
	DefaultValidatorURL = "https://validator.w3.org/nu/"

	// DefaultUserAgent identifies nucheck to the checker and to captured
	// sites. The public checker rejects requests without a User-Agent.
	DefaultUserAgent = "nucheck/1.0 (+https://github.com/nao1215/nucheck)"

	// DefaultTimeout of zero leaves requests bounded only by the transport
	// and the command's context.
	DefaultTimeout time.Duration = 0

	// DefaultBatchSize is the number of targets validated concurrently.
	// The public checker throttles clients that send many requests at once.
	DefaultBatchSize = 4

	// DefaultFailOn makes the command exit non-zero when errors are found.
	DefaultFailOn = "error"

	// DefaultMaxBodySize limits how much of a captured page is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultMaxPages bounds the pages discovered from one URL target.
	DefaultMaxPages = 50
)

// Config holds all configuration options for nucheck.
// It is populated from CLI flags and an optional config file and passed
// through the application rather than kept in global state.
type Config struct {
	// Targets are URLs, file paths or "-" for stdin.
	Targets []string

	// ValidatorURL is the checker endpoint. out=json is added when
	// requests are sent.
	ValidatorURL string

	// UserAgent is sent to the checker and to captured sites.
	UserAgent string

	// Timeout bounds each capture and validation request. Zero means no
	// timeout beyond the transport's own.
	Timeout time.Duration

	// BatchSize is the number of targets validated concurrently.
	BatchSize int

	// Context is the number of source lines shown on each side of a
	// message. Zero disables context.
	Context int

	// FailOn is the lowest message level that makes the command fail:
	// "error", "warning", "info" or "none".
	FailOn string

	// ShowFilters includes the active filters in reports.
	ShowFilters bool

	// Serialize parses captured markup and re-serializes it as a browser
	// would before validation.
	Serialize bool

	// Watch re-validates every target at this interval until interrupted.
	// Zero disables watching.
	Watch time.Duration

	// SkipUnchanged skips targets whose markup matches their latest
	// successful run in the history database.
	SkipUnchanged bool

	// CrawlDepth is how many levels of same-site links are followed from
	// each URL target. Zero validates only the given pages.
	CrawlDepth int

	// MaxPages bounds the pages discovered from one URL target.
	MaxPages int

	// IgnorePatterns are glob patterns of URL paths never crawled.
	IgnorePatterns []string

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for reports. Empty means stdout.
	ReportFile string

	// NoColor disables colored terminal output.
	NoColor bool

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .nucheck in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds per-site capture settings from the config file.
	SiteConfigs *File

	// DBDir is the directory holding the sqlite database with filter
	// preferences and run history.
	DBDir string

	// NoDB keeps filters in memory and disables run history.
	NoDB bool

	// MaxBodySize is the maximum number of bytes read from a captured page.
	MaxBodySize int64
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		ValidatorURL: DefaultValidatorURL,
		UserAgent:    DefaultUserAgent,
		Timeout:      DefaultTimeout,
		BatchSize:    DefaultBatchSize,
		FailOn:       DefaultFailOn,
		DBDir:        XDGDataDir(),
		MaxBodySize:  DefaultMaxBodySize,
		MaxPages:     DefaultMaxPages,
	}
}

// XDGDataDir returns the XDG data directory for nucheck.
// On Linux: ~/.local/share/nucheck
// On macOS: ~/Library/Application Support/nucheck
// On Windows: %LOCALAPPDATA%\nucheck
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// ApplyFile merges settings from a config file. Values still at their
// defaults are replaced; values set on the command line win.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	c.SiteConfigs = f
	if f.Validator != "" && c.ValidatorURL == DefaultValidatorURL {
		c.ValidatorURL = f.Validator
	}
	if f.UserAgent != "" && c.UserAgent == DefaultUserAgent {
		c.UserAgent = f.UserAgent
	}
	if len(c.IgnorePatterns) == 0 {
		c.IgnorePatterns = f.Ignore
	}
}

// FailLevel returns FailOn as a message level.
// It returns false if FailOn is not a known level.
func (c *Config) FailLevel() (model.Level, bool) {
	return model.ParseLevel(c.FailOn)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	u, err := url.Parse(c.ValidatorURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidValidatorURL
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	// Zero is allowed and means no timeout
	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}

	if c.Context < 0 {
		return ErrInvalidContext
	}

	if _, ok := c.FailLevel(); !ok {
		return ErrInvalidFailOn
	}

	if c.Watch < 0 {
		return ErrInvalidWatchInterval
	}
	if c.Watch > 0 {
		for _, t := range c.Targets {
			if t == "-" {
				return ErrWatchStdin
			}
		}
	}

	if c.SkipUnchanged && c.NoDB {
		return ErrSkipUnchangedNoDB
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.CrawlDepth < 0 {
		return ErrInvalidCrawlDepth
	}
	if c.CrawlDepth > 0 && c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}

	return nil
}
