package model

import "time"

// Run is a single validation attempt for one target.
// It carries everything needed to render a report or store the attempt.
type Run struct {
	// ID is the database identifier, zero until the run is saved.
	ID int64 `json:"id,omitempty"`

	// Target is what was validated: a URL, a file path or "-" for stdin.
	Target string `json:"target"`

	// Title is the document title, if one was found.
	Title string `json:"title,omitempty"`

	// ValidatorURL is the checker endpoint that was used.
	ValidatorURL string `json:"validator_url"`

	// Markup is the exact text submitted to the checker.
	// Message positions refer to this text.
	Markup string `json:"-"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long capture and validation took.
	Duration time.Duration `json:"duration"`

	// Messages are the raw checker messages.
	Messages []ValidationMessage `json:"messages"`

	// Err is set when the run failed.
	Err error `json:"-"`

	// ErrorMessage is Err as text, kept for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// Stale is set when a newer run superseded this one before it finished.
	Stale bool `json:"-"`

	// Unchanged is set when the markup matched the previous capture and
	// validation was skipped.
	Unchanged bool `json:"-"`

	// Steps lists the pipeline steps that ran.
	Steps []string `json:"-"`
}

// NewRun creates a run for target.
func NewRun(target, validatorURL string) *Run {
	return &Run{
		Target:       target,
		ValidatorURL: validatorURL,
		StartedAt:    time.Now(),
		Messages:     make([]ValidationMessage, 0),
	}
}

// Failed reports whether the run ended in an error.
func (r *Run) Failed() bool {
	return r.Err != nil || r.ErrorMessage != ""
}

// SetError records err on the run.
func (r *Run) SetError(err error) {
	r.Err = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Counts tallies messages per level.
type Counts struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Infos    int `json:"infos"`
}

// Total returns the number of counted messages.
func (c Counts) Total() int {
	return c.Errors + c.Warnings + c.Infos
}

// Max returns the most serious level with a non-zero count.
func (c Counts) Max() Level {
	switch {
	case c.Errors > 0:
		return LevelError
	case c.Warnings > 0:
		return LevelWarning
	case c.Infos > 0:
		return LevelInfo
	default:
		return LevelNone
	}
}

// CountMessages tallies messages per level.
func CountMessages(messages []Message) Counts {
	var c Counts
	for _, m := range messages {
		switch m.Level() {
		case LevelError:
			c.Errors++
		case LevelWarning:
			c.Warnings++
		case LevelInfo, LevelNone:
			c.Infos++
		}
	}
	return c
}
