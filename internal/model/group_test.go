package model

import (
	"fmt"
	"testing"
)

// TestGroupMessages covers the grouping contract: one group per distinct
// (kind, message) pair, first-occurrence order, every message in exactly one group.
func TestGroupMessages(t *testing.T) {
	t.Parallel()

	t.Run("scenario from two identical errors and one info", func(t *testing.T) {
		t.Parallel()

		msgs := NormalizeAll([]ValidationMessage{
			{Type: "error", Message: "Bad tag"},
			{Type: "error", Message: "Bad tag"},
			{Type: "info", Message: "FYI"},
		})

		gs := GroupMessages(msgs)
		if gs.Len() != 2 {
			t.Fatalf("expected 2 groups, got %d", gs.Len())
		}

		g, ok := gs.Get(GroupKey{Kind: "error", Message: "Bad tag"})
		if !ok {
			t.Fatal("expected error/Bad tag group")
		}
		if len(g.Messages) != 2 {
			t.Errorf("expected 2 messages in error group, got %d", len(g.Messages))
		}

		groups := gs.Groups()
		if groups[0].Kind != "error" || groups[1].Kind != "info" {
			t.Errorf("expected first-occurrence order error, info; got %s, %s", groups[0].Kind, groups[1].Kind)
		}
	})

	t.Run("kind and message do not collide when concatenated", func(t *testing.T) {
		t.Parallel()

		msgs := []Message{
			{Kind: "A", ValidationMessage: ValidationMessage{Message: "BC"}},
			{Kind: "AB", ValidationMessage: ValidationMessage{Message: "C"}},
		}

		gs := GroupMessages(msgs)
		if gs.Len() != 2 {
			t.Errorf("expected 2 groups, got %d", gs.Len())
		}
	})

	t.Run("subtype is the grouping kind", func(t *testing.T) {
		t.Parallel()

		msgs := NormalizeAll([]ValidationMessage{
			{Type: "info", SubType: "warning", Message: "X"},
			{Type: "info", Message: "X"},
		})

		gs := GroupMessages(msgs)
		if gs.Len() != 2 {
			t.Fatalf("expected warning and info to be separate groups, got %d", gs.Len())
		}
		if gs.Groups()[0].Kind != "warning" {
			t.Errorf("expected first group kind warning, got %q", gs.Groups()[0].Kind)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()

		gs := GroupMessages(nil)
		if gs.Len() != 0 {
			t.Errorf("expected no groups, got %d", gs.Len())
		}
		if len(gs.Groups()) != 0 {
			t.Error("expected empty group list")
		}
	})

	t.Run("every message lands in exactly one group", func(t *testing.T) {
		t.Parallel()

		var msgs []Message
		distinct := make(map[GroupKey]bool)
		for i := 0; i < 50; i++ {
			m := Normalize(ValidationMessage{
				Type:     []string{"error", "info"}[i%2],
				Message:  fmt.Sprintf("message %d", i%7),
				LastLine: i + 1,
			})
			msgs = append(msgs, m)
			distinct[KeyOf(m)] = true
		}

		gs := GroupMessages(msgs)
		if gs.Len() != len(distinct) {
			t.Errorf("expected %d groups, got %d", len(distinct), gs.Len())
		}
		if gs.MessageCount() != len(msgs) {
			t.Errorf("expected %d grouped messages, got %d", len(msgs), gs.MessageCount())
		}

		seen := make(map[int]int)
		for _, g := range gs.Groups() {
			for _, m := range g.Messages {
				if KeyOf(m) != g.Key() {
					t.Errorf("message on line %d is in the wrong group", m.LastLine)
				}
				seen[m.LastLine]++
			}
		}
		for line, n := range seen {
			if n != 1 {
				t.Errorf("message on line %d appears %d times", line, n)
			}
		}
	})
}

// TestGroupSetNil verifies a nil GroupSet behaves as empty.
func TestGroupSetNil(t *testing.T) {
	t.Parallel()

	var gs *GroupSet
	if gs.Len() != 0 {
		t.Error("expected nil set to have length 0")
	}
	if gs.Groups() != nil {
		t.Error("expected nil groups")
	}
	if _, ok := gs.Get(GroupKey{}); ok {
		t.Error("expected lookup on nil set to fail")
	}
}
