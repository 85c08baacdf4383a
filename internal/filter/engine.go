package filter

import (
	"fmt"

	"github.com/nao1215/nucheck/internal/model"
)

// Group is a message group with the filter applied.
type Group struct {
	// MessageGroup is a copy of the source group. Its Messages slice is
	// shared with the source and must not be modified.
	model.MessageGroup

	// Filtered are the messages that survived the filter, in order.
	Filtered []model.Message `json:"filtered"`

	// NumFiltered is how many messages of the group were hidden.
	NumFiltered int `json:"num_filtered"`
}

// Result is the outcome of applying a State to a GroupSet.
type Result struct {
	// Groups holds every group in first-occurrence order, including groups
	// whose messages were all hidden.
	Groups []Group `json:"groups"`
}

// Apply filters every group of gs by st. It does not modify gs.
//
// A message survives when its kind is not a hidden type and its text is not
// a hidden message.
func Apply(gs *model.GroupSet, st State) Result {
	hiddenTypes := toSet(st.Types)
	hiddenMessages := toSet(st.Messages)

	src := gs.Groups()
	result := Result{Groups: make([]Group, 0, len(src))}
	for _, g := range src {
		filtered := make([]model.Message, 0, len(g.Messages))
		for _, m := range g.Messages {
			if hiddenTypes[m.Kind] || hiddenMessages[m.Message] {
				continue
			}
			filtered = append(filtered, m)
		}
		result.Groups = append(result.Groups, Group{
			MessageGroup: *g,
			Filtered:     filtered,
			NumFiltered:  len(g.Messages) - len(filtered),
		})
	}
	return result
}

// Visible returns the groups that still have at least one message.
func (r Result) Visible() []Group {
	visible := make([]Group, 0, len(r.Groups))
	for _, g := range r.Groups {
		if len(g.Filtered) > 0 {
			visible = append(visible, g)
		}
	}
	return visible
}

// Hidden returns the total number of hidden messages.
func (r Result) Hidden() int {
	n := 0
	for _, g := range r.Groups {
		n += g.NumFiltered
	}
	return n
}

// VisibleMessages returns every surviving message in group order.
func (r Result) VisibleMessages() []model.Message {
	var out []model.Message
	for _, g := range r.Groups {
		out = append(out, g.Filtered...)
	}
	return out
}

// HiddenLabel renders the hidden-message count for display, or "" when
// nothing is hidden.
func HiddenLabel(hidden int) string {
	if hidden == 0 {
		return ""
	}
	return fmt.Sprintf("(%d messages hidden)", hidden)
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
