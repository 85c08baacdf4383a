package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoTarget is returned when no URL, file or stdin target is given.
	ErrNoTarget = errors.New("no target specified: provide a URL, a file path or - for stdin")

	// ErrInvalidValidatorURL is returned when the validator endpoint is not
	// an absolute http(s) URL.
	ErrInvalidValidatorURL = errors.New("invalid validator URL: must be an absolute http or https URL")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidTimeout is returned when the timeout is negative.
	ErrInvalidTimeout = errors.New("invalid timeout: must be zero or positive")

	// ErrInvalidContext is returned when the context line count is negative.
	ErrInvalidContext = errors.New("invalid context: must be zero or positive")

	// ErrInvalidFailOn is returned for an unknown --fail-on level.
	ErrInvalidFailOn = errors.New("invalid fail-on level: must be error, warning, info or none")

	// ErrInvalidWatchInterval is returned when the watch interval is negative.
	ErrInvalidWatchInterval = errors.New("invalid watch interval: must be zero or positive")

	// ErrWatchStdin is returned when --watch is combined with stdin, which
	// can only be read once.
	ErrWatchStdin = errors.New("cannot watch stdin: --watch needs URL or file targets")

	// ErrSkipUnchangedNoDB is returned when --skip-unchanged is combined
	// with --no-db, leaving nothing to compare against.
	ErrSkipUnchangedNoDB = errors.New("cannot skip unchanged targets without history: remove --no-db")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidCrawlDepth is returned when the crawl depth is negative.
	ErrInvalidCrawlDepth = errors.New("invalid crawl depth: must be zero or positive")

	// ErrInvalidMaxPages is returned when crawling with a page limit below one.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")
)
