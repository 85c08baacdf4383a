package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nao1215/nucheck/internal/database"
	"github.com/nao1215/nucheck/internal/filter"
	"github.com/nao1215/nucheck/internal/markup"
	"github.com/nao1215/nucheck/internal/model"
	"github.com/nao1215/nucheck/internal/session"
	"github.com/nao1215/nucheck/internal/validator"
)

// stubCapturer returns markup from a map.
type stubCapturer struct {
	mu     sync.Mutex
	pages  map[string]string
	err    error
	called int
}

func (c *stubCapturer) Capture(_ context.Context, target string) (*markup.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.called++
	if c.err != nil {
		return nil, c.err
	}
	return &markup.Document{Target: target, Markup: c.pages[target], Title: "T " + target}, nil
}

func (c *stubCapturer) set(target, markup string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[target] = markup
}

// stubValidator returns one error message per call, or a fixed error.
type stubValidator struct {
	err error
}

func (v stubValidator) Validate(_ context.Context, markup string) ([]model.ValidationMessage, error) {
	if v.err != nil {
		return nil, v.err
	}
	return []model.ValidationMessage{{Type: "error", Message: "bad " + markup}}, nil
}

func (v stubValidator) Endpoint() string {
	return "http://checker.test/?out=json"
}

// memoryRuns is an in-memory RunStore.
type memoryRuns struct {
	mu   sync.Mutex
	runs []*model.Run
	err  error
}

func (m *memoryRuns) SaveRun(_ context.Context, run *model.Run) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.runs = append(m.runs, run)
	run.ID = int64(len(m.runs))
	return run.ID, nil
}

func (m *memoryRuns) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

// TestCaptureStep tests markup capture and change detection.
func TestCaptureStep(t *testing.T) {
	t.Parallel()

	t.Run("fills markup and title", func(t *testing.T) {
		t.Parallel()

		step := NewCaptureStep(&stubCapturer{pages: map[string]string{"a.html": "<p>"}})
		if step.Name() != "capture" {
			t.Errorf("unexpected name %q", step.Name())
		}

		run := model.NewRun("a.html", "")
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if run.Markup != "<p>" || run.Title != "T a.html" {
			t.Errorf("unexpected run %+v", run)
		}
	})

	t.Run("wraps capture errors", func(t *testing.T) {
		t.Parallel()

		step := NewCaptureStep(&stubCapturer{err: markup.ErrUnexpectedStatus})
		err := step.Do(context.Background(), model.NewRun("http://x/", ""))
		if !errors.Is(err, markup.ErrUnexpectedStatus) {
			t.Errorf("expected wrapped capture error, got %v", err)
		}
	})

	t.Run("unchanged markup is skipped", func(t *testing.T) {
		t.Parallel()

		capturer := &stubCapturer{pages: map[string]string{"a.html": "<p>"}}
		step := NewCaptureStep(capturer, WithChangeTracker(NewChangeTracker()))

		if err := step.Do(context.Background(), model.NewRun("a.html", "")); err != nil {
			t.Fatalf("first capture: unexpected error: %v", err)
		}

		run := model.NewRun("a.html", "")
		if err := step.Do(context.Background(), run); !errors.Is(err, ErrSkip) {
			t.Fatalf("expected ErrSkip, got %v", err)
		}
		if !run.Unchanged {
			t.Error("expected run to be marked unchanged")
		}

		capturer.set("a.html", "<p>changed")
		if err := step.Do(context.Background(), model.NewRun("a.html", "")); err != nil {
			t.Errorf("changed markup: unexpected error: %v", err)
		}
	})
}

// TestChangeTracker tests digest tracking.
func TestChangeTracker(t *testing.T) {
	t.Parallel()

	tracker := NewChangeTracker()
	if !tracker.Changed("a", "x") {
		t.Error("first sighting must count as changed")
	}
	if tracker.Changed("a", "x") {
		t.Error("same markup must not count as changed")
	}
	if !tracker.Changed("b", "x") {
		t.Error("targets are tracked separately")
	}
	tracker.Forget("a")
	if !tracker.Changed("a", "x") {
		t.Error("forgotten target must count as changed")
	}

	tracker.Seed("c", database.Digest("stored"))
	if tracker.Changed("c", "stored") {
		t.Error("markup matching the seeded digest must not count as changed")
	}
	if !tracker.Changed("c", "edited") {
		t.Error("markup differing from the seed must count as changed")
	}
}

// TestValidateStep tests validation through a session.
func TestValidateStep(t *testing.T) {
	t.Parallel()

	t.Run("stores messages and validator url", func(t *testing.T) {
		t.Parallel()

		sess := session.New(context.Background(), filter.NewStore(filter.NewMemoryKV()))
		step := NewValidateStep(stubValidator{}, WithSession(sess))

		run := model.NewRun("a.html", "")
		run.Markup = "<p>"
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(run.Messages) != 1 || run.Messages[0].Message != "bad <p>" {
			t.Errorf("unexpected messages %+v", run.Messages)
		}
		if run.ValidatorURL != "http://checker.test/?out=json" {
			t.Errorf("unexpected validator url %q", run.ValidatorURL)
		}
		if sess.Phase() != session.ShowingResults {
			t.Errorf("expected session to show results, got %s", sess.Phase())
		}
	})

	t.Run("returns request errors", func(t *testing.T) {
		t.Parallel()

		reqErr := &validator.RequestError{StatusCode: 503, Status: "503 Service Unavailable"}
		sess := session.New(context.Background(), nil)
		step := NewValidateStep(stubValidator{err: reqErr}, WithSession(sess))

		run := model.NewRun("a.html", "")
		run.Markup = "<p>"
		var got *validator.RequestError
		if err := step.Do(context.Background(), run); !errors.As(err, &got) {
			t.Fatalf("expected RequestError, got %v", err)
		}
		if sess.Busy() {
			t.Error("expected session not busy after failure")
		}
	})

	t.Run("skips failed runs", func(t *testing.T) {
		t.Parallel()

		step := NewValidateStep(stubValidator{})
		run := model.NewRun("a.html", "")
		run.SetError(errors.New("capture failed"))
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(run.Messages) != 0 {
			t.Error("expected no validation for failed run")
		}
	})

	t.Run("validates directly without a session", func(t *testing.T) {
		t.Parallel()

		run := model.NewRun("a.html", "")
		run.Markup = "<b>"
		if err := NewValidateStep(stubValidator{}).Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(run.Messages) != 1 {
			t.Errorf("expected 1 message, got %d", len(run.Messages))
		}
	})
}

// blockingValidator waits for release before answering.
type blockingValidator struct {
	started chan struct{}
	release chan struct{}
}

func (v blockingValidator) Validate(ctx context.Context, _ string) ([]model.ValidationMessage, error) {
	v.started <- struct{}{}
	select {
	case <-v.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []model.ValidationMessage{{Type: "error", Message: "old"}}, nil
}

func (v blockingValidator) Endpoint() string { return "" }

// TestValidateStepStale verifies a superseded validation marks the run stale.
func TestValidateStepStale(t *testing.T) {
	t.Parallel()

	sess := session.New(context.Background(), nil)
	bv := blockingValidator{started: make(chan struct{}, 1), release: make(chan struct{})}
	step := NewValidateStep(bv, WithSession(sess))

	run := model.NewRun("a.html", "")
	run.Markup = "<old>"
	done := make(chan error, 1)
	go func() {
		done <- step.Do(context.Background(), run)
	}()

	<-bv.started
	// A newer validation of the same target supersedes the blocked one
	newer := sess.Begin("<new>")
	close(bv.release)

	if err := <-done; !errors.Is(err, ErrSkip) {
		t.Fatalf("expected ErrSkip, got %v", err)
	}
	if !run.Stale {
		t.Error("expected run to be marked stale")
	}
	if err := sess.Complete(newer, nil); err != nil {
		t.Errorf("newer validation should still apply: %v", err)
	}
}

// TestSaveStep tests history persistence.
func TestSaveStep(t *testing.T) {
	t.Parallel()

	t.Run("saves successful and failed runs", func(t *testing.T) {
		t.Parallel()

		store := &memoryRuns{}
		step := NewSaveStep(store)

		ok := model.NewRun("a.html", "")
		ok.Markup = "<p>"
		failed := model.NewRun("b.html", "")
		failed.Markup = "<p>"
		failed.SetError(errors.New("500"))

		for _, run := range []*model.Run{ok, failed} {
			if err := step.Do(context.Background(), run); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if store.count() != 2 {
			t.Errorf("expected 2 saved runs, got %d", store.count())
		}
		if ok.ID == 0 {
			t.Error("expected run id to be set")
		}
	})

	t.Run("skips stale and uncaptured runs", func(t *testing.T) {
		t.Parallel()

		store := &memoryRuns{}
		step := NewSaveStep(store)

		stale := model.NewRun("a.html", "")
		stale.Markup = "<p>"
		stale.Stale = true
		empty := model.NewRun("b.html", "")
		empty.SetError(errors.New("capture failed"))

		for _, run := range []*model.Run{stale, empty} {
			if err := step.Do(context.Background(), run); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if store.count() != 0 {
			t.Errorf("expected nothing saved, got %d", store.count())
		}
	})

	t.Run("wraps store errors", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("disk full")
		run := model.NewRun("a.html", "")
		run.Markup = "<p>"
		if err := NewSaveStep(&memoryRuns{err: boom}).Do(context.Background(), run); !errors.Is(err, boom) {
			t.Errorf("expected wrapped store error, got %v", err)
		}
	})
}

// TestDefaultPipeline tests the assembled pipeline.
func TestDefaultPipeline(t *testing.T) {
	t.Parallel()

	t.Run("with store", func(t *testing.T) {
		t.Parallel()

		store := &memoryRuns{}
		p := DefaultPipeline(
			&stubCapturer{pages: map[string]string{"a.html": "<p>"}},
			stubValidator{},
			nil,
			WithPipelineStore(store),
		)
		names := p.StepNames()
		if len(names) != 3 || names[0] != "capture" || names[1] != "validate" || names[2] != "save" {
			t.Fatalf("unexpected steps %v", names)
		}

		run := model.NewRun("a.html", "")
		if err := p.Execute(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if store.count() != 1 || len(run.Messages) != 1 {
			t.Errorf("expected saved run with messages, got %d saved, %d messages", store.count(), len(run.Messages))
		}
	})

	t.Run("failed validation is still saved", func(t *testing.T) {
		t.Parallel()

		store := &memoryRuns{}
		p := DefaultPipeline(
			&stubCapturer{pages: map[string]string{"a.html": "<p>"}},
			stubValidator{err: &validator.RequestError{StatusCode: 500, Status: "500 Internal Server Error"}},
			nil,
			WithPipelineStore(store),
		)

		run := model.NewRun("a.html", "")
		if err := p.Execute(context.Background(), run); err == nil {
			t.Fatal("expected error")
		}
		if !run.Failed() || store.count() != 1 {
			t.Errorf("expected failed run saved, failed=%v saved=%d", run.Failed(), store.count())
		}
	})

	t.Run("without store", func(t *testing.T) {
		t.Parallel()

		p := DefaultPipeline(&stubCapturer{pages: map[string]string{}}, stubValidator{}, nil)
		if p.StepCount() != 2 {
			t.Errorf("expected 2 steps, got %d", p.StepCount())
		}
	})
}
