package highlight

import (
	"errors"
	"testing"

	"github.com/nao1215/nucheck/internal/model"
)

// TestLocate covers locating a fragment in submitted source.
func TestLocate(t *testing.T) {
	t.Parallel()

	t.Run("first column present", func(t *testing.T) {
		t.Parallel()

		span, err := Locate("<div><spn></div>", Location{LastLine: 1, FirstColumn: 6, HiliteLength: 4})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if span.Prefix != "<div>" {
			t.Errorf("expected prefix %q, got %q", "<div>", span.Prefix)
		}
		if span.Highlight != "<spn" {
			t.Errorf("expected highlight %q, got %q", "<spn", span.Highlight)
		}
		if span.Suffix != "></div>" {
			t.Errorf("expected suffix %q, got %q", "></div>", span.Suffix)
		}
	})

	t.Run("only last column present", func(t *testing.T) {
		t.Parallel()

		// lastColumn 9 with length 4 starts at offset 5
		span, err := Locate("<div><spn></div>", Location{LastLine: 1, LastColumn: 9, HiliteLength: 4})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if span.Highlight != "<spn" {
			t.Errorf("expected highlight %q, got %q", "<spn", span.Highlight)
		}
	})

	t.Run("selects the last line", func(t *testing.T) {
		t.Parallel()

		src := "<!DOCTYPE html>\n<html>\n<p><b>x</p>"
		span, err := Locate(src, Location{LastLine: 3, FirstColumn: 4, HiliteLength: 3})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if span.Prefix != "<p>" || span.Highlight != "<b>" || span.Suffix != "x</p>" {
			t.Errorf("unexpected span %+v", span)
		}
	})

	t.Run("line beyond source is out of range", func(t *testing.T) {
		t.Parallel()

		_, err := Locate("one\ntwo", Location{LastLine: 3, FirstColumn: 1, HiliteLength: 1})
		if !errors.Is(err, ErrOutOfRange) {
			t.Errorf("expected ErrOutOfRange, got %v", err)
		}
	})

	t.Run("missing line is out of range", func(t *testing.T) {
		t.Parallel()

		_, err := Locate("one", Location{})
		if !errors.Is(err, ErrOutOfRange) {
			t.Errorf("expected ErrOutOfRange, got %v", err)
		}
	})

	t.Run("carriage return stays on the line", func(t *testing.T) {
		t.Parallel()

		span, err := Locate("<a>\r\n<b>\r\n", Location{LastLine: 2, FirstColumn: 1, HiliteLength: 3})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if span.Highlight != "<b>" || span.Suffix != "\r" {
			t.Errorf("unexpected span %+v", span)
		}
	})
}

// TestSplitUTF16 verifies offsets are UTF-16 code units, not bytes or runes.
func TestSplitUTF16(t *testing.T) {
	t.Parallel()

	t.Run("multibyte BMP characters", func(t *testing.T) {
		t.Parallel()

		// "é" is 2 bytes but 1 code unit
		span := Split("<p>é<bad>", 4, 5)
		if span.Prefix != "<p>é" || span.Highlight != "<bad>" {
			t.Errorf("unexpected span %+v", span)
		}
	})

	t.Run("astral characters count as two units", func(t *testing.T) {
		t.Parallel()

		// "😀" is 1 rune, 4 bytes, 2 code units
		span := Split("😀<x>", 2, 3)
		if span.Prefix != "😀" || span.Highlight != "<x>" || span.Suffix != "" {
			t.Errorf("unexpected span %+v", span)
		}
	})

	t.Run("splitting a surrogate pair keeps the length invariant", func(t *testing.T) {
		t.Parallel()

		line := "a😀b"
		span := Split(line, 2, 1)
		if Len(span.Prefix)+Len(span.Highlight)+Len(span.Suffix) != Len(line) {
			t.Errorf("length invariant broken: %+v", span)
		}
	})

	t.Run("invalid utf-8 bytes are kept", func(t *testing.T) {
		t.Parallel()

		line := "ab\xffcd<spn>"
		span := Split(line, 5, 5)
		if span.Highlight != "<spn>" || span.Prefix != "ab\xffcd" {
			t.Errorf("unexpected span %+v", span)
		}
		if span.Line() != line {
			t.Errorf("expected line %q to reassemble, got %q", line, span.Line())
		}
	})
}

// TestSplitInvariant checks the length invariant over many offsets.
func TestSplitInvariant(t *testing.T) {
	t.Parallel()

	lines := []string{"", "<div><spn></div>", "héllo wörld", "日本語のテキスト", "x😀y😀z"}
	for _, line := range lines {
		n := Len(line)
		for start := -2; start <= n+2; start++ {
			for length := -1; length <= n+2; length++ {
				span := Split(line, start, length)
				got := Len(span.Prefix) + Len(span.Highlight) + Len(span.Suffix)
				if got != n {
					t.Fatalf("line %q start %d length %d: expected total %d, got %d", line, start, length, n, got)
				}
				if start >= 0 && length >= 0 && start+length <= n && Len(span.Highlight) != length {
					t.Fatalf("line %q start %d length %d: highlight length %d", line, start, length, Len(span.Highlight))
				}
			}
		}
	}
}

// TestSplitDegenerate verifies out-of-bounds offsets never panic.
func TestSplitDegenerate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		start, length int
		wantHighlight string
	}{
		{"negative start", -3, 2, "ab"},
		{"start past end", 10, 2, ""},
		{"length past end", 2, 10, "cd"},
		{"zero length", 1, 0, ""},
		{"negative length", 1, -4, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			span := Split("abcd", tt.start, tt.length)
			if span.Highlight != tt.wantHighlight {
				t.Errorf("expected highlight %q, got %q", tt.wantHighlight, span.Highlight)
			}
			if span.Line() != "abcd" {
				t.Errorf("expected line to reassemble, got %q", span.Line())
			}
		})
	}
}

// TestExtractSpan verifies the checker's extract is split at hiliteStart.
func TestExtractSpan(t *testing.T) {
	t.Parallel()

	m := model.Normalize(model.ValidationMessage{
		Type:         "error",
		Extract:      "ody>\n<spn>hi</s",
		HiliteStart:  5,
		HiliteLength: 5,
	})

	span := ExtractSpan(m)
	if span.Highlight != "<spn>" {
		t.Errorf("expected highlight %q, got %q", "<spn>", span.Highlight)
	}
	if span.IsEmpty() {
		t.Error("expected non-empty span")
	}

	if !ExtractSpan(model.Message{}).IsEmpty() {
		t.Error("expected empty span for message without extract")
	}
}

// TestContext verifies surrounding lines and the highlighted line.
func TestContext(t *testing.T) {
	t.Parallel()

	src := "l1\nl2\n<x>\nl4\nl5"
	loc := Location{LastLine: 3, FirstColumn: 1, HiliteLength: 3}

	t.Run("radius one", func(t *testing.T) {
		t.Parallel()

		lines, err := Context(src, loc, 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(lines) != 3 {
			t.Fatalf("expected 3 lines, got %d", len(lines))
		}
		if lines[0].Number != 2 || lines[2].Number != 4 {
			t.Errorf("unexpected numbering %d..%d", lines[0].Number, lines[2].Number)
		}
		if lines[1].Span == nil || lines[1].Span.Highlight != "<x>" {
			t.Errorf("expected highlighted target line, got %+v", lines[1])
		}
		if lines[0].Span != nil || lines[2].Span != nil {
			t.Error("expected only the target line to carry a span")
		}
	})

	t.Run("radius clamps at file edges", func(t *testing.T) {
		t.Parallel()

		lines, err := Context(src, Location{LastLine: 1, FirstColumn: 1, HiliteLength: 1}, 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(lines) != 5 {
			t.Errorf("expected whole file, got %d lines", len(lines))
		}
	})

	t.Run("negative radius shows the target line only", func(t *testing.T) {
		t.Parallel()

		lines, err := Context(src, loc, -1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(lines) != 1 || lines[0].Number != 3 {
			t.Errorf("unexpected lines %+v", lines)
		}
	})

	t.Run("out of range", func(t *testing.T) {
		t.Parallel()

		if _, err := Context(src, Location{LastLine: 99}, 2); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("expected ErrOutOfRange, got %v", err)
		}
	})
}
