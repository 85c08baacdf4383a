package filter

import "slices"

// State is the user's persisted choice of which messages to hide.
//
// Both fields have set semantics: entries are unique and order only affects
// how active filters are listed. Every method returns a new State and leaves
// the receiver untouched, so a State can be shared freely.
type State struct {
	// Messages are hidden message texts.
	Messages []string `json:"messages"`

	// Types are hidden message kinds (subtype if present, else type).
	Types []string `json:"types"`
}

// NewState returns the default state with nothing hidden.
func NewState() State {
	return State{Messages: []string{}, Types: []string{}}
}

// HideType hides every message of kind t.
func (s State) HideType(t string) State {
	return State{Messages: clone(s.Messages), Types: add(s.Types, t)}
}

// HideMessage hides every message whose text is m.
func (s State) HideMessage(m string) State {
	return State{Messages: add(s.Messages, m), Types: clone(s.Types)}
}

// UnhideType removes t from the hidden kinds.
func (s State) UnhideType(t string) State {
	return State{Messages: clone(s.Messages), Types: remove(s.Types, t)}
}

// UnhideMessage removes m from the hidden message texts.
func (s State) UnhideMessage(m string) State {
	return State{Messages: remove(s.Messages, m), Types: clone(s.Types)}
}

// Reset returns the default state.
func (s State) Reset() State {
	return NewState()
}

// HidesType reports whether kind t is hidden.
func (s State) HidesType(t string) bool {
	return slices.Contains(s.Types, t)
}

// HidesMessage reports whether message text m is hidden.
func (s State) HidesMessage(m string) bool {
	return slices.Contains(s.Messages, m)
}

// IsEmpty reports whether nothing is hidden.
func (s State) IsEmpty() bool {
	return len(s.Types) == 0 && len(s.Messages) == 0
}

// Equal reports whether two states hide the same things in the same order.
func (s State) Equal(other State) bool {
	return slices.Equal(s.Messages, other.Messages) && slices.Equal(s.Types, other.Types)
}

// normalized drops duplicates and replaces nil slices with empty ones, so
// the JSON form always carries arrays.
func (s State) normalized() State {
	return State{Messages: dedupe(s.Messages), Types: dedupe(s.Types)}
}

func clone(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func add(values []string, v string) []string {
	out := clone(values)
	if slices.Contains(out, v) {
		return out
	}
	return append(out, v)
}

func remove(values []string, v string) []string {
	out := make([]string, 0, len(values))
	for _, existing := range values {
		if existing != v {
			out = append(out, existing)
		}
	}
	return out
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
