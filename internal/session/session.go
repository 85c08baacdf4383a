package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/nao1215/nucheck/internal/filter"
	"github.com/nao1215/nucheck/internal/model"
)

// ErrStale is returned when an outcome arrives for a validation that has
// been superseded or detached. The outcome is discarded.
var ErrStale = errors.New("stale validation outcome discarded")

// Phase is the validation lifecycle state.
type Phase int

const (
	// Idle means nothing has been validated, or results were cleared.
	Idle Phase = iota
	// Validating means a request is in flight.
	Validating
	// ShowingResults means the latest validation succeeded.
	ShowingResults
	// Failed means the latest validation failed.
	Failed
)

// String returns the lowercase phase name.
func (p Phase) String() string {
	switch p {
	case Validating:
		return "validating"
	case ShowingResults:
		return "showing-results"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Token identifies one validation attempt. Tokens increase monotonically
// within a session; the zero Token is never issued.
type Token uint64

// Validator submits markup and returns the raw checker messages.
type Validator interface {
	Validate(ctx context.Context, markup string) ([]model.ValidationMessage, error)
}

// Session tracks one target's validation state, its results and the
// user's filters. It is safe for concurrent use.
//
// Only the outcome carrying the latest token is applied. Earlier outcomes
// are reported as ErrStale and leave the session untouched.
type Session struct {
	mu sync.Mutex

	phase Phase

	// seq is the last issued token.
	seq Token

	// inflight is the token of the running attempt, zero when none.
	inflight Token

	// pending is the markup submitted by the running attempt.
	pending string

	// markup is the markup the current groups refer to.
	markup string

	// groups are the latest successful results, nil when none.
	groups *model.GroupSet

	filters filter.State
	store   *filter.Store

	showFilters bool
	showResults bool

	// lastErr is the failure of the latest attempt.
	lastErr error

	logger *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// New creates an idle session whose filters are loaded from store.
// A nil store keeps filters in memory only.
func New(ctx context.Context, store *filter.Store, opts ...Option) *Session {
	s := &Session{
		phase:       Idle,
		store:       store,
		filters:     filter.NewState(),
		showResults: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if store != nil {
		s.filters = store.Load(ctx)
	}
	return s
}

// Begin starts a validation of markup and returns its token.
// Results from any earlier attempt still in flight become stale.
func (s *Session) Begin(markup string) Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.inflight = s.seq
	s.pending = markup
	s.phase = Validating
	return s.inflight
}

// Complete applies the messages of attempt token.
// It returns ErrStale if token is not the attempt in flight.
func (s *Session) Complete(token Token, messages []model.ValidationMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current(token) {
		s.logger.Debug("discarding stale validation result", "attempt", uint64(token), "latest", uint64(s.seq))
		return ErrStale
	}

	s.groups = model.GroupMessages(model.NormalizeAll(messages))
	s.markup = s.pending
	s.pending = ""
	s.inflight = 0
	s.lastErr = nil
	s.phase = ShowingResults
	s.showResults = true
	return nil
}

// Fail records the failure of attempt token. Earlier results and their
// markup are kept. It returns ErrStale if token is not the attempt in flight.
func (s *Session) Fail(token Token, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current(token) {
		s.logger.Debug("discarding stale validation failure", "attempt", uint64(token), "error", err)
		return ErrStale
	}

	s.pending = ""
	s.inflight = 0
	s.lastErr = err
	s.phase = Failed
	return nil
}

// current reports whether token is the attempt in flight.
// The caller must hold s.mu.
func (s *Session) current(token Token) bool {
	return token != 0 && token == s.inflight
}

// Detach abandons the attempt in flight. Its outcome will be stale.
func (s *Session) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight == 0 {
		return
	}
	s.inflight = 0
	s.pending = ""
	s.phase = s.settledPhase()
}

// Clear drops the current results and hides the filter panel.
// An attempt in flight is not affected.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.groups = nil
	s.markup = ""
	s.lastErr = nil
	s.showFilters = false
	if s.inflight == 0 {
		s.phase = Idle
	}
}

// settledPhase is the phase implied by the stored results.
// The caller must hold s.mu.
func (s *Session) settledPhase() Phase {
	switch {
	case s.lastErr != nil:
		return Failed
	case s.groups != nil:
		return ShowingResults
	default:
		return Idle
	}
}

// Run validates markup with v: Begin, Validate, then Complete or Fail.
//
// It returns the raw messages when the outcome was applied, the validation
// error when it failed, or ErrStale when a newer attempt superseded it.
// The session is never left busy by this attempt.
func (s *Session) Run(ctx context.Context, v Validator, markup string) ([]model.ValidationMessage, error) {
	token := s.Begin(markup)

	messages, err := v.Validate(ctx, markup)
	if err != nil {
		if staleErr := s.Fail(token, err); staleErr != nil {
			return nil, staleErr
		}
		s.logger.Warn("validation failed", "error", err)
		return nil, err
	}

	if err := s.Complete(token, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// Busy reports whether a validation is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight != 0
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Err returns the failure of the latest attempt, if it failed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ToggleFilters shows or hides the active filter list.
func (s *Session) ToggleFilters() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showFilters = !s.showFilters
	return s.showFilters
}

// ToggleResults shows or hides the results.
func (s *Session) ToggleResults() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showResults = !s.showResults
	return s.showResults
}

// Filters returns the active filter state.
func (s *Session) Filters() filter.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// HideType hides every message of kind and persists the change.
func (s *Session) HideType(ctx context.Context, kind string) error {
	return s.updateFilters(ctx, func(st filter.State) filter.State { return st.HideType(kind) })
}

// HideMessage hides every message with text message and persists the change.
func (s *Session) HideMessage(ctx context.Context, message string) error {
	return s.updateFilters(ctx, func(st filter.State) filter.State { return st.HideMessage(message) })
}

// UnhideType removes a kind filter and persists the change.
func (s *Session) UnhideType(ctx context.Context, kind string) error {
	return s.updateFilters(ctx, func(st filter.State) filter.State { return st.UnhideType(kind) })
}

// UnhideMessage removes a message filter and persists the change.
func (s *Session) UnhideMessage(ctx context.Context, message string) error {
	return s.updateFilters(ctx, func(st filter.State) filter.State { return st.UnhideMessage(message) })
}

// ResetFilters removes every filter and persists the change.
func (s *Session) ResetFilters(ctx context.Context) error {
	return s.updateFilters(ctx, func(st filter.State) filter.State { return st.Reset() })
}

// updateFilters applies fn and saves the result. The in-memory state is
// updated even when saving fails.
func (s *Session) updateFilters(ctx context.Context, fn func(filter.State) filter.State) error {
	s.mu.Lock()
	s.filters = fn(s.filters)
	st := s.filters
	s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	return s.store.Save(ctx, st)
}

// View is a consistent snapshot of what should be displayed.
type View struct {
	// Phase is the lifecycle state.
	Phase Phase

	// Busy is true while a validation is in flight.
	Busy bool

	// HasResults is true when a successful validation is stored.
	HasResults bool

	// Result is the stored results with the active filters applied.
	Result filter.Result

	// Markup is the text the results refer to.
	Markup string

	// Filters is the active filter state.
	Filters filter.State

	// ShowFilters and ShowResults are the display toggles.
	ShowFilters bool
	ShowResults bool

	// Err is the failure of the latest attempt.
	Err error
}

// HiddenLabel returns "(n messages hidden)", or "" when nothing is hidden.
func (v View) HiddenLabel() string {
	return filter.HiddenLabel(v.Result.Hidden())
}

// View returns a snapshot of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	return View{
		Phase:       s.phase,
		Busy:        s.inflight != 0,
		HasResults:  s.groups != nil,
		Result:      filter.Apply(s.groups, s.filters),
		Markup:      s.markup,
		Filters:     s.filters,
		ShowFilters: s.showFilters,
		ShowResults: s.showResults,
		Err:         s.lastErr,
	}
}
