package model

import (
	"encoding/json"
	"testing"
)

// TestNormalize verifies how the grouping kind is resolved.
func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      ValidationMessage
		wantKind string
	}{
		{
			name:     "type only",
			raw:      ValidationMessage{Type: TypeError, Message: "Bad tag"},
			wantKind: TypeError,
		},
		{
			name:     "subtype wins over type",
			raw:      ValidationMessage{Type: TypeInfo, SubType: SubTypeWarning, Message: "Consider lang"},
			wantKind: SubTypeWarning,
		},
		{
			name:     "empty type and subtype",
			raw:      ValidationMessage{Message: "odd"},
			wantKind: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Normalize(tt.raw)
			if got.Kind != tt.wantKind {
				t.Errorf("expected kind %q, got %q", tt.wantKind, got.Kind)
			}
			if got.ValidationMessage != tt.raw {
				t.Error("expected raw message to be carried unchanged")
			}
		})
	}
}

// TestNormalizeAll verifies order is preserved.
func TestNormalizeAll(t *testing.T) {
	t.Parallel()

	raw := []ValidationMessage{
		{Type: TypeError, Message: "a"},
		{Type: TypeInfo, Message: "b"},
		{Type: TypeError, SubType: SubTypeFatal, Message: "c"},
	}

	got := NormalizeAll(raw)
	if len(got) != len(raw) {
		t.Fatalf("expected %d messages, got %d", len(raw), len(got))
	}
	for i, want := range []string{"error", "info", "fatal"} {
		if got[i].Kind != want {
			t.Errorf("message %d: expected kind %q, got %q", i, want, got[i].Kind)
		}
	}

	if len(NormalizeAll(nil)) != 0 {
		t.Error("expected empty result for nil input")
	}
}

// TestValidationMessageJSON verifies decoding of the checker's field names.
func TestValidationMessageJSON(t *testing.T) {
	t.Parallel()

	data := `{
		"type": "info",
		"subType": "warning",
		"message": "Consider adding a lang attribute.",
		"extract": "<html><head>",
		"lastLine": 2,
		"lastColumn": 6,
		"firstColumn": 1,
		"hiliteStart": 0,
		"hiliteLength": 6
	}`

	var m ValidationMessage
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.Type != "info" || m.SubType != "warning" {
		t.Errorf("unexpected type/subtype: %q/%q", m.Type, m.SubType)
	}
	if m.LastLine != 2 || m.LastColumn != 6 || m.FirstColumn != 1 {
		t.Errorf("unexpected position: line %d cols %d-%d", m.LastLine, m.FirstColumn, m.LastColumn)
	}
	if m.HiliteLength != 6 {
		t.Errorf("expected hiliteLength 6, got %d", m.HiliteLength)
	}
	if m.FirstLine != 0 {
		t.Errorf("expected absent firstLine to decode as 0, got %d", m.FirstLine)
	}
}

// TestMessageLevel verifies the level mapping used for exit codes.
func TestMessageLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  ValidationMessage
		want Level
	}{
		{ValidationMessage{Type: TypeError}, LevelError},
		{ValidationMessage{Type: TypeError, SubType: SubTypeFatal}, LevelError},
		{ValidationMessage{Type: TypeNonDocumentError, SubType: "io"}, LevelError},
		{ValidationMessage{Type: TypeInfo, SubType: SubTypeWarning}, LevelWarning},
		{ValidationMessage{Type: TypeInfo}, LevelInfo},
		{ValidationMessage{Type: "something-new"}, LevelInfo},
	}

	for _, tt := range tests {
		if got := Normalize(tt.raw).Level(); got != tt.want {
			t.Errorf("%s/%s: expected %s, got %s", tt.raw.Type, tt.raw.SubType, tt.want, got)
		}
	}
}

// TestParseLevel verifies ParseLevel round-trips Level.String.
func TestParseLevel(t *testing.T) {
	t.Parallel()

	for _, l := range []Level{LevelNone, LevelInfo, LevelWarning, LevelError} {
		got, ok := ParseLevel(l.String())
		if !ok || got != l {
			t.Errorf("expected %s to parse, got %v (ok=%v)", l, got, ok)
		}
	}

	if _, ok := ParseLevel("fatal"); ok {
		t.Error("expected unknown level to fail")
	}
	if Level(42).String() != "unknown" {
		t.Error("expected unknown level string")
	}
}

// TestCountMessages verifies per-level tallies.
func TestCountMessages(t *testing.T) {
	t.Parallel()

	msgs := NormalizeAll([]ValidationMessage{
		{Type: TypeError},
		{Type: TypeError, SubType: SubTypeFatal},
		{Type: TypeInfo, SubType: SubTypeWarning},
		{Type: TypeInfo},
		{Type: TypeInfo},
	})

	c := CountMessages(msgs)
	if c.Errors != 2 || c.Warnings != 1 || c.Infos != 2 {
		t.Errorf("unexpected counts: %+v", c)
	}
	if c.Total() != 5 {
		t.Errorf("expected total 5, got %d", c.Total())
	}
	if c.Max() != LevelError {
		t.Errorf("expected max error, got %s", c.Max())
	}
	if (Counts{}).Max() != LevelNone {
		t.Error("expected empty counts to have level none")
	}
	if (Counts{Infos: 1}).Max() != LevelInfo {
		t.Error("expected info-only counts to have level info")
	}
}
