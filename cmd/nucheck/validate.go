package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/nucheck/internal/config"
	"github.com/nao1215/nucheck/internal/crawler"
	"github.com/nao1215/nucheck/internal/database"
	"github.com/nao1215/nucheck/internal/filter"
	"github.com/nao1215/nucheck/internal/markup"
	"github.com/nao1215/nucheck/internal/model"
	"github.com/nao1215/nucheck/internal/pipeline"
	"github.com/nao1215/nucheck/internal/report"
	"github.com/nao1215/nucheck/internal/session"
	"github.com/nao1215/nucheck/internal/validator"
)

// errValidationFailed is returned when a target could not be validated or
// when messages at or above the --fail-on level were found.
var errValidationFailed = errors.New("validation failed")

// NewValidateCmd creates the validate command.
func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [targets...]",
		Short: "Validate HTML documents with the Nu HTML Checker",
		Long: `Validate submits HTML documents to the Nu HTML Checker and reports its messages.

A target is a URL, a local file path or "-" for standard input. Messages are
grouped by kind and text. Message kinds and texts hidden with 'nucheck filter'
are left out of the report and counted as hidden.

The command exits with a non-zero status when a target could not be validated
or when a visible message is at or above the --fail-on level.

Examples:
  # Validate a page
  nucheck validate https://example.com/

  # Validate local files with a self-hosted checker
  nucheck validate -u http://localhost:8888/ index.html about.html

  # Validate generated markup from standard input
  hugo --renderToMemory | nucheck validate -

  # Show two lines of source around each message
  nucheck validate -C 2 index.html

  # Re-validate whenever the page changes
  nucheck validate --watch 10s http://localhost:1313/

  # Validate a site's home page and every page it links to
  nucheck validate --depth 1 --ignore "/logout" https://example.com/

  # Write a Markdown report and only fail on errors
  nucheck validate -m -o report.md --fail-on error https://example.com/

Configuration file (.nucheck) example:
  validator: "http://localhost:8888/"
  sites:
    staging.example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"`,
		Args: cobra.ArbitraryArgs,
		RunE: runValidateCmd,
	}

	// Checker flags
	cmd.Flags().StringP("validator", "u", config.DefaultValidatorURL,
		"Nu HTML Checker endpoint")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each capture and validation request (0 means none)")

	// Capture flags
	cmd.Flags().BoolP("serialize", "s", false,
		"Re-serialize markup through an HTML parser before validation")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of targets validated concurrently")
	cmd.Flags().DurationP("watch", "w", 0,
		"Re-validate changed targets at this interval until interrupted")
	cmd.Flags().Bool("skip-unchanged", false,
		"Skip targets whose markup matches their latest successful run")

	// Crawl flags
	cmd.Flags().IntP("depth", "d", 0,
		"Also validate same-site pages linked from URL targets, up to this many links away")
	cmd.Flags().Int("max-pages", config.DefaultMaxPages,
		"Maximum pages discovered from each URL target with --depth")
	cmd.Flags().StringSlice("ignore", nil,
		"URL path globs never crawled with --depth (e.g. \"/admin/*\")")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .nucheck in current or home directory)")
	cmd.Flags().Bool("no-db", false,
		"Do not read saved filters or record history")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().IntP("context", "C", 0,
		"Lines of source shown on each side of a message")
	cmd.Flags().BoolP("show-filters", "F", false,
		"Include the active filters in the report")
	cmd.Flags().String("fail-on", config.DefaultFailOn,
		"Lowest message level that fails the command: error, warning, info or none")
	cmd.Flags().Bool("no-color", false,
		"Disable colored output")

	return cmd
}

// runValidateCmd executes the validate command.
func runValidateCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	// Cancel in-flight requests on interrupt
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runValidate(ctx, cmd, cfg, logger)
}

// buildConfig creates a Config from cobra command flags and the config file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	if cfg.ValidatorURL, err = cmd.Flags().GetString("validator"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.Serialize, err = cmd.Flags().GetBool("serialize"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = cmd.Flags().GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.Watch, err = cmd.Flags().GetDuration("watch"); err != nil {
		return nil, err
	}
	if cfg.NoDB, err = cmd.Flags().GetBool("no-db"); err != nil {
		return nil, err
	}
	if cfg.SkipUnchanged, err = cmd.Flags().GetBool("skip-unchanged"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return nil, err
	}
	if cfg.Context, err = cmd.Flags().GetInt("context"); err != nil {
		return nil, err
	}
	if cfg.ShowFilters, err = cmd.Flags().GetBool("show-filters"); err != nil {
		return nil, err
	}
	if cfg.FailOn, err = cmd.Flags().GetString("fail-on"); err != nil {
		return nil, err
	}
	if cfg.NoColor, err = cmd.Flags().GetBool("no-color"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = cmd.Flags().GetString("config"); err != nil {
		return nil, err
	}
	if cfg.CrawlDepth, err = cmd.Flags().GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = cmd.Flags().GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.IgnorePatterns, err = cmd.Flags().GetStringSlice("ignore"); err != nil {
		return nil, err
	}

	// An explicit config path must exist; the default locations are optional
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(file)
	case explicitConfigPath:
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.DBDir = getDBDir(cmd)
	cfg.Targets = uniqueTargets(args)

	return cfg, nil
}

// uniqueTargets normalizes URL targets and drops duplicates, keeping the
// order of first appearance.
func uniqueTargets(args []string) []string {
	targets := make([]string, 0, len(args))
	for _, arg := range args {
		t := markup.NormalizeTarget(arg)
		if !slices.Contains(targets, t) {
			targets = append(targets, t)
		}
	}
	return targets
}

// siteResolver adapts the config file's per-site settings to the fetcher.
func siteResolver(f *config.File) markup.SiteResolver {
	if f == nil {
		return nil
	}
	return func(host string) markup.Site {
		sc := f.GetSiteConfig(host)
		return markup.Site{Cookie: sc.Cookie, Headers: sc.Headers}
	}
}

// validation holds everything needed to validate the targets repeatedly.
type validation struct {
	targets  []string
	sessions map[string]*session.Session
	tracker  *pipeline.ChangeTracker
	batch    *pipeline.BatchProcessor
	writer   report.Writer
	jsonOut  bool
	logger   *slog.Logger

	// status receives a line per target skipped as unchanged; nil is silent.
	status io.Writer
}

// runValidate validates every target once, or repeatedly with --watch.
func runValidate(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	logger.Debug("starting validation",
		"targets", cfg.Targets,
		"validator", cfg.ValidatorURL,
		"batchSize", cfg.BatchSize,
		"watch", cfg.Watch,
	)

	var (
		db   *database.DB
		kv   filter.KeyValue
		runs pipeline.RunStore
	)
	if cfg.NoDB {
		kv = filter.NewMemoryKV()
	} else {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("database opened", "path", db.Path())
		kv, runs = db, db
	}
	store := filter.NewStore(kv, filter.WithStoreLogger(logger))

	client, err := validator.NewClient(cfg.ValidatorURL,
		validator.WithTimeout(cfg.Timeout),
		validator.WithUserAgent(cfg.UserAgent),
	)
	if err != nil {
		return err
	}

	fetcher := markup.NewFetcher(
		markup.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		markup.WithUserAgent(cfg.UserAgent),
		markup.WithMaxBodySize(cfg.MaxBodySize),
		markup.WithSerialize(cfg.Serialize),
		markup.WithStdin(cmd.InOrStdin()),
		markup.WithSites(siteResolver(cfg.SiteConfigs)),
	)

	targets := cfg.Targets
	if cfg.CrawlDepth > 0 {
		targets, err = crawlTargets(ctx, fetcher, cfg, cmd.ErrOrStderr(), logger)
		if err != nil {
			return err
		}
	}

	out, closeOut, err := openOutput(cfg.ReportFile, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOut() //nolint:errcheck // Best effort close of the report file

	failLevel, _ := cfg.FailLevel()

	v := &validation{
		targets:  targets,
		sessions: make(map[string]*session.Session, len(targets)),
		writer:   newReportWriter(out, cfg.JSONReport, cfg.MarkdownReport, reportOptions(cfg)...),
		jsonOut:  cfg.JSONReport,
		logger:   logger,
	}
	for _, target := range targets {
		v.sessions[target] = session.New(ctx, store, session.WithLogger(logger))
	}
	if cfg.Watch > 0 || cfg.SkipUnchanged {
		v.tracker = pipeline.NewChangeTracker()
	}
	if cfg.SkipUnchanged {
		if err := seedTracker(ctx, v.tracker, db, targets); err != nil {
			return err
		}
		v.status = cmd.ErrOrStderr()
	}

	v.batch = pipeline.NewBatchProcessor(
		func(target string) *pipeline.Pipeline {
			opts := []pipeline.DefaultPipelineOption{
				pipeline.WithPipelineSession(v.sessions[target]),
				pipeline.WithPipelineStepLogger(logger),
			}
			if runs != nil {
				opts = append(opts, pipeline.WithPipelineStore(runs))
			}
			if v.tracker != nil {
				opts = append(opts, pipeline.WithPipelineTracker(v.tracker))
			}
			return pipeline.DefaultPipeline(fetcher, client, nil, opts...)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
		pipeline.WithRunFactory(func(target string) *model.Run {
			return model.NewRun(target, client.Endpoint())
		}),
	)

	if cfg.Watch > 0 {
		return v.watch(ctx, cfg.Watch, cmd.ErrOrStderr())
	}

	reports, err := v.cycle(ctx)
	if err != nil {
		return err
	}
	if err := v.emit(reports); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return checkFailures(reports, failLevel)
}

// crawlTargets replaces each URL target with the pages found by following
// its same-site links. A URL whose start page cannot be captured is kept
// so its validation reports the failure.
func crawlTargets(ctx context.Context, capturer crawler.Capturer, cfg *config.Config, status io.Writer, logger *slog.Logger) ([]string, error) {
	targets := make([]string, 0, len(cfg.Targets))
	add := func(t string) {
		if !slices.Contains(targets, t) {
			targets = append(targets, t)
		}
	}

	for _, target := range cfg.Targets {
		if markup.KindOf(target) != markup.SourceURL {
			add(target)
			continue
		}

		spider := crawler.NewSpider(capturer,
			crawler.WithMaxDepth(cfg.CrawlDepth),
			crawler.WithMaxPages(cfg.MaxPages),
			crawler.WithIgnorePatterns(cfg.IgnorePatterns),
			crawler.WithSpiderLogger(logger),
		)
		pages, err := spider.Crawl(ctx, target)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			logger.Warn("crawl failed", "target", target, "error", err)
			add(target)
			continue
		}

		for _, p := range pages {
			add(p.URL)
		}
		fmt.Fprintf(status, "Found %d pages from %s\n", len(pages), target)
	}
	return targets, nil
}

// seedTracker records the digest of each target's latest successful run,
// so markup that has not changed since then is skipped.
func seedTracker(ctx context.Context, tracker *pipeline.ChangeTracker, db *database.DB, targets []string) error {
	for _, target := range targets {
		digest, err := db.LatestDigest(ctx, target)
		if err != nil {
			return err
		}
		if digest != "" {
			tracker.Seed(target, digest)
		}
	}
	return nil
}

// reportOptions maps the configuration to writer options.
func reportOptions(cfg *config.Config) []report.Option {
	return []report.Option{
		report.WithShowFilters(cfg.ShowFilters),
		report.WithContext(cfg.Context),
		report.WithColor(!cfg.NoColor && cfg.ReportFile == "" && !colorDisabled()),
		report.WithPrettyPrint(),
		report.WithVersion(getVersion()),
	}
}

// cycle validates every target once and returns a report per target that
// produced a new outcome. Unchanged and superseded runs have none.
func (v *validation) cycle(ctx context.Context) ([]*report.Report, error) {
	runs, err := v.batch.ProcessBatch(ctx, v.targets)

	reports := make([]*report.Report, 0, len(runs))
	for i, run := range runs {
		if run == nil || run.Stale {
			continue
		}
		if run.Unchanged {
			if v.status != nil {
				fmt.Fprintf(v.status, "Skipped %s: unchanged since the last run\n", run.Target)
			}
			continue
		}
		if run.Failed() {
			v.logger.Error("validation failed", "target", run.Target, "error", run.ErrorMessage)
			if v.tracker != nil {
				v.tracker.Forget(run.Target)
			}
		}
		reports = append(reports, report.FromView(run, v.sessions[v.targets[i]].View()))
	}
	return reports, err
}

// emit writes the reports. Several text or Markdown reports are followed
// by a summary; several JSON reports become one array.
func (v *validation) emit(reports []*report.Report) error {
	if len(reports) == 0 {
		return nil
	}
	if v.jsonOut && len(reports) > 1 {
		_, err := v.writer.WriteSummary(reports)
		return err
	}
	for _, r := range reports {
		if _, err := v.writer.Write(r); err != nil {
			return err
		}
	}
	if len(reports) > 1 {
		_, err := v.writer.WriteSummary(reports)
		return err
	}
	return nil
}

// watch re-validates at every tick until ctx is cancelled. Only targets
// whose markup changed, or whose last attempt failed, are reported again.
func (v *validation) watch(ctx context.Context, interval time.Duration, status io.Writer) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fmt.Fprintf(status, "Watching %d targets every %s (Ctrl+C to stop)\n", len(v.targets), interval)
	for {
		reports, err := v.cycle(ctx)
		// Only the first cycle reports skipped targets
		v.status = nil
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			v.logger.Error("validation cycle failed", "error", err)
		}
		if err := v.emit(reports); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// checkFailures returns errValidationFailed when a run failed or when a
// visible message reaches failLevel. LevelNone never fails on messages.
func checkFailures(reports []*report.Report, failLevel model.Level) error {
	failed := 0
	worst := model.LevelNone
	for _, r := range reports {
		if r.Run.Failed() {
			failed++
		}
		worst = max(worst, r.Counts().Max())
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d targets could not be validated", errValidationFailed, failed, len(reports))
	}
	if failLevel != model.LevelNone && worst >= failLevel {
		return fmt.Errorf("%w: found %s messages (--fail-on %s)", errValidationFailed, worst, failLevel)
	}
	return nil
}
