package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nao1215/nucheck/internal/database"
	"github.com/nao1215/nucheck/internal/markup"
	"github.com/nao1215/nucheck/internal/model"
	"github.com/nao1215/nucheck/internal/session"
)

// Capturer obtains the markup of a target.
// markup.Fetcher is the production implementation.
type Capturer interface {
	Capture(ctx context.Context, target string) (*markup.Document, error)
}

// Validator submits markup to a checker.
// validator.Client is the production implementation.
type Validator interface {
	session.Validator

	// Endpoint returns the checker URL, recorded on each run.
	Endpoint() string
}

// RunStore persists finished runs.
// database.DB is the production implementation.
type RunStore interface {
	SaveRun(ctx context.Context, run *model.Run) (int64, error)
}

// ChangeTracker remembers the digest of the last markup seen per target.
// It is safe for concurrent use.
type ChangeTracker struct {
	mu      sync.Mutex
	digests map[string]string
}

// NewChangeTracker creates an empty tracker.
func NewChangeTracker() *ChangeTracker {
	return &ChangeTracker{digests: make(map[string]string)}
}

// Changed records markup for target and reports whether it differs from
// what was recorded before. The first call for a target always reports true.
func (t *ChangeTracker) Changed(target, markup string) bool {
	digest := database.Digest(markup)

	t.mu.Lock()
	defer t.mu.Unlock()

	prev, ok := t.digests[target]
	t.digests[target] = digest
	return !ok || prev != digest
}

// Seed records digest as the last markup seen for target, for example the
// digest of its latest stored run.
func (t *ChangeTracker) Seed(target, digest string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.digests[target] = digest
}

// Forget drops what is recorded for target, so the next capture counts as
// changed. Callers use it after a failed validation.
func (t *ChangeTracker) Forget(target string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.digests, target)
}

// CaptureStep reads the target's markup into the run.
type CaptureStep struct {
	// capturer fetches the markup.
	capturer Capturer

	// tracker, when set, stops the pipeline for unchanged markup.
	tracker *ChangeTracker

	// logger for structured logging.
	logger *slog.Logger
}

// CaptureStepOption configures a CaptureStep.
type CaptureStepOption func(*CaptureStep)

// WithChangeTracker skips validation when the markup has not changed
// since the previous capture of the same target.
func WithChangeTracker(tracker *ChangeTracker) CaptureStepOption {
	return func(s *CaptureStep) {
		s.tracker = tracker
	}
}

// WithCaptureLogger sets a custom logger for the capture step.
func WithCaptureLogger(logger *slog.Logger) CaptureStepOption {
	return func(s *CaptureStep) {
		s.logger = logger
	}
}

// NewCaptureStep creates a capture step.
func NewCaptureStep(capturer Capturer, opts ...CaptureStepOption) *CaptureStep {
	s := &CaptureStep{
		capturer: capturer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CaptureStep) Name() string {
	return "capture"
}

// Do executes the capture step.
func (s *CaptureStep) Do(ctx context.Context, run *model.Run) error {
	doc, err := s.capturer.Capture(ctx, run.Target)
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}

	run.Markup = doc.Markup
	run.Title = doc.Title

	s.logger.Debug("captured markup",
		"target", run.Target,
		"source", doc.Source.String(),
		"bytes", len(doc.Markup),
	)

	if s.tracker != nil && !s.tracker.Changed(run.Target, run.Markup) {
		run.Unchanged = true
		return ErrSkip
	}
	return nil
}

// ValidateStep submits the run's markup through a session.
type ValidateStep struct {
	// validator is the checker client.
	validator Validator

	// session tracks the target's validation state; nil validates directly.
	session *session.Session

	// logger for structured logging.
	logger *slog.Logger
}

// ValidateStepOption configures a ValidateStep.
type ValidateStepOption func(*ValidateStep)

// WithSession routes validation through sess, so overlapping runs of the
// same target resolve to the newest one.
func WithSession(sess *session.Session) ValidateStepOption {
	return func(s *ValidateStep) {
		s.session = sess
	}
}

// WithValidateLogger sets a custom logger for the validate step.
func WithValidateLogger(logger *slog.Logger) ValidateStepOption {
	return func(s *ValidateStep) {
		s.logger = logger
	}
}

// NewValidateStep creates a validate step.
func NewValidateStep(v Validator, opts ...ValidateStepOption) *ValidateStep {
	s := &ValidateStep{
		validator: v,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ValidateStep) Name() string {
	return "validate"
}

// Do executes the validate step. Runs that already failed are left alone.
// A superseded validation marks the run stale and stops the pipeline.
func (s *ValidateStep) Do(ctx context.Context, run *model.Run) error {
	if run.Failed() {
		return nil
	}
	if run.ValidatorURL == "" {
		run.ValidatorURL = s.validator.Endpoint()
	}

	var (
		messages []model.ValidationMessage
		err      error
	)
	if s.session != nil {
		messages, err = s.session.Run(ctx, s.validator, run.Markup)
	} else {
		messages, err = s.validator.Validate(ctx, run.Markup)
	}

	if errors.Is(err, session.ErrStale) {
		s.logger.Debug("validation superseded", "target", run.Target)
		run.Stale = true
		return ErrSkip
	}
	if err != nil {
		return err
	}

	run.Messages = messages
	s.logger.Debug("validation finished",
		"target", run.Target,
		"messages", len(messages),
	)
	return nil
}

// SaveStep stores the run in the history database.
type SaveStep struct {
	// store persists runs.
	store RunStore

	// logger for structured logging.
	logger *slog.Logger
}

// SaveStepOption configures a SaveStep.
type SaveStepOption func(*SaveStep)

// WithSaveLogger sets a custom logger for the save step.
func WithSaveLogger(logger *slog.Logger) SaveStepOption {
	return func(s *SaveStep) {
		s.logger = logger
	}
}

// NewSaveStep creates a save step.
func NewSaveStep(store RunStore, opts ...SaveStepOption) *SaveStep {
	s := &SaveStep{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *SaveStep) Name() string {
	return "save"
}

// Do executes the save step. Failed validations are saved too; runs
// without captured markup are not.
func (s *SaveStep) Do(ctx context.Context, run *model.Run) error {
	if run.Stale || run.Markup == "" {
		return nil
	}

	id, err := s.store.SaveRun(ctx, run)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	s.logger.Debug("saved run", "target", run.Target, "id", id)
	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// Session tracks validation state for the target.
	Session *session.Session

	// Store saves runs; nil disables history.
	Store RunStore

	// Tracker skips validation of unchanged markup; nil validates every time.
	Tracker *ChangeTracker

	// Logger is passed to every step.
	Logger *slog.Logger
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineSession sets the session used by the validate step.
func WithPipelineSession(sess *session.Session) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Session = sess
	}
}

// WithPipelineStore enables the save step.
func WithPipelineStore(store RunStore) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Store = store
	}
}

// WithPipelineTracker enables change detection in the capture step.
func WithPipelineTracker(tracker *ChangeTracker) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Tracker = tracker
	}
}

// WithPipelineStepLogger sets the logger used by every step.
func WithPipelineStepLogger(logger *slog.Logger) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Logger = logger
	}
}

// DefaultPipeline creates the standard capture, validate, save pipeline.
//
// The pipeline continues after a failed step so that failed validations
// still reach the save step.
func DefaultPipeline(capturer Capturer, v Validator, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	cfg := &DefaultPipelineConfig{}
	for _, opt := range configOpts {
		opt(cfg)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := append([]Option{WithContinueOnError(true), WithLogger(logger)}, pipelineOpts...)
	p := New(opts...)

	captureOpts := []CaptureStepOption{WithCaptureLogger(logger)}
	if cfg.Tracker != nil {
		captureOpts = append(captureOpts, WithChangeTracker(cfg.Tracker))
	}

	validateOpts := []ValidateStepOption{WithValidateLogger(logger)}
	if cfg.Session != nil {
		validateOpts = append(validateOpts, WithSession(cfg.Session))
	}

	p.AddSteps(
		NewCaptureStep(capturer, captureOpts...),
		NewValidateStep(v, validateOpts...),
	)
	if cfg.Store != nil {
		p.AddStep(NewSaveStep(cfg.Store, WithSaveLogger(logger)))
	}

	return p
}
