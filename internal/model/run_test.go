package model

import (
	"errors"
	"testing"
)

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("new run is not failed", func(t *testing.T) {
		t.Parallel()

		run := NewRun("index.html", "http://localhost:8888/?out=json")
		if run.Failed() {
			t.Error("expected a new run not to be failed")
		}
		if run.Messages == nil || run.StartedAt.IsZero() {
			t.Errorf("expected messages and start time to be set, got %+v", run)
		}
	})

	t.Run("SetError marks the run failed", func(t *testing.T) {
		t.Parallel()

		run := NewRun("index.html", "")
		run.SetError(errors.New("connection refused"))
		if !run.Failed() || run.ErrorMessage != "connection refused" {
			t.Errorf("unexpected run state: failed=%v error=%q", run.Failed(), run.ErrorMessage)
		}
	})

	t.Run("SetError with nil", func(t *testing.T) {
		t.Parallel()

		run := NewRun("index.html", "")
		run.SetError(nil)
		if run.Failed() {
			t.Error("expected nil error to leave the run successful")
		}
	})

	t.Run("stored error text alone counts as failure", func(t *testing.T) {
		t.Parallel()

		run := &Run{ErrorMessage: "timeout"}
		if !run.Failed() {
			t.Error("expected a run loaded with error text to be failed")
		}
	})
}

func TestCountsTotal(t *testing.T) {
	t.Parallel()

	if got := (Counts{Errors: 2, Warnings: 1, Infos: 3}).Total(); got != 6 {
		t.Errorf("Total() = %d, want 6", got)
	}
}
