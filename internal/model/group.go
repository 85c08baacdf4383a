package model

// GroupKey identifies a message group.
//
// It is a struct rather than a concatenated string so that kind "A" with
// message "BC" and kind "AB" with message "C" stay in separate groups.
type GroupKey struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// KeyOf returns the group key of a message.
func KeyOf(m Message) GroupKey {
	return GroupKey{Kind: m.Kind, Message: m.Message}
}

// MessageGroup collects messages sharing a kind and message text.
type MessageGroup struct {
	// Kind is the shared message kind.
	Kind string `json:"kind"`

	// Message is the shared message text.
	Message string `json:"message"`

	// Messages are the member messages in the order they were reported.
	Messages []Message `json:"messages"`
}

// Key returns the key of the group.
func (g *MessageGroup) Key() GroupKey {
	return GroupKey{Kind: g.Kind, Message: g.Message}
}

// GroupSet is an insertion-ordered collection of message groups.
// Iteration order is the order in which each key was first seen.
type GroupSet struct {
	order []GroupKey
	index map[GroupKey]*MessageGroup
}

// NewGroupSet returns an empty GroupSet.
func NewGroupSet() *GroupSet {
	return &GroupSet{
		order: make([]GroupKey, 0),
		index: make(map[GroupKey]*MessageGroup),
	}
}

// GroupMessages buckets messages by (kind, message text).
func GroupMessages(messages []Message) *GroupSet {
	gs := NewGroupSet()
	for _, m := range messages {
		gs.Add(m)
	}
	return gs
}

// Add appends a message to its group, creating the group if needed.
func (gs *GroupSet) Add(m Message) {
	key := KeyOf(m)
	g, ok := gs.index[key]
	if !ok {
		g = &MessageGroup{Kind: key.Kind, Message: key.Message, Messages: make([]Message, 0, 1)}
		gs.index[key] = g
		gs.order = append(gs.order, key)
	}
	g.Messages = append(g.Messages, m)
}

// Len returns the number of groups.
func (gs *GroupSet) Len() int {
	if gs == nil {
		return 0
	}
	return len(gs.order)
}

// Get returns the group for key.
func (gs *GroupSet) Get(key GroupKey) (*MessageGroup, bool) {
	if gs == nil {
		return nil, false
	}
	g, ok := gs.index[key]
	return g, ok
}

// Groups returns the groups in first-occurrence order.
func (gs *GroupSet) Groups() []*MessageGroup {
	if gs == nil {
		return nil
	}
	groups := make([]*MessageGroup, len(gs.order))
	for i, key := range gs.order {
		groups[i] = gs.index[key]
	}
	return groups
}

// MessageCount returns the total number of messages across all groups.
func (gs *GroupSet) MessageCount() int {
	n := 0
	for _, g := range gs.Groups() {
		n += len(g.Messages)
	}
	return n
}
