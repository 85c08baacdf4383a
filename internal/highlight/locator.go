package highlight

import (
	"errors"
	"strings"
	"unicode/utf16"

	"github.com/nao1215/nucheck/internal/model"
)

// ErrOutOfRange is returned when a message points at a line the source
// text does not have. Callers should render nothing for that message.
var ErrOutOfRange = errors.New("line out of range")

// Span is a line split around the highlighted fragment.
//
// Lengths are measured in UTF-16 code units, the unit the checker uses for
// columns: Len(Prefix)+Len(Highlight)+Len(Suffix) == Len(line).
type Span struct {
	Prefix    string `json:"prefix"`
	Highlight string `json:"highlight"`
	Suffix    string `json:"suffix"`
}

// Line reassembles the original line.
func (s Span) Line() string {
	return s.Prefix + s.Highlight + s.Suffix
}

// IsEmpty reports whether nothing is highlighted.
func (s Span) IsEmpty() bool {
	return s.Highlight == ""
}

// Location is the part of a message needed to find its fragment in the
// submitted source.
type Location struct {
	LastLine     int
	FirstColumn  int
	LastColumn   int
	HiliteLength int
}

// LocationOf extracts the Location of a message.
func LocationOf(m model.Message) Location {
	return Location{
		LastLine:     m.LastLine,
		FirstColumn:  m.FirstColumn,
		LastColumn:   m.LastColumn,
		HiliteLength: m.HiliteLength,
	}
}

// Start returns the 0-based start offset of the fragment on its line.
// The checker sometimes reports only an end column; the start is then
// derived from the highlight length.
func (l Location) Start() int {
	if l.FirstColumn != 0 {
		return l.FirstColumn - 1
	}
	return l.LastColumn - l.HiliteLength
}

// Len returns the length of s in UTF-16 code units.
func Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// Split cuts line into prefix, highlight and suffix at UTF-16 offset start
// with the given length. Offsets outside the line are clamped, so a
// degenerate location yields an empty highlight instead of a panic.
//
// The parts are slices of line, so Line() returns the input byte for byte,
// invalid UTF-8 included. The one exception is an offset inside a surrogate
// pair: that character cannot be cut in UTF-8 and its halves become U+FFFD.
func Split(line string, start, length int) Span {
	n := Len(line)

	start = clamp(start, 0, n)
	end := start
	if length > 0 {
		end = clamp(start+length, start, n)
	}

	i, okStart := byteOffset(line, start)
	j, okEnd := byteOffset(line, end)
	if okStart && okEnd {
		return Span{Prefix: line[:i], Highlight: line[i:j], Suffix: line[j:]}
	}

	units := utf16.Encode([]rune(line))
	return Span{
		Prefix:    string(utf16.Decode(units[:start])),
		Highlight: string(utf16.Decode(units[start:end])),
		Suffix:    string(utf16.Decode(units[end:])),
	}
}

// byteOffset converts a UTF-16 offset into a byte offset of s. It reports
// false when the offset falls between the two units of a surrogate pair.
// An invalid byte counts as one unit, as in Len.
func byteOffset(s string, unit int) (int, bool) {
	units := 0
	for i, r := range s {
		if units == unit {
			return i, true
		}
		if units > unit {
			return 0, false
		}
		units += utf16.RuneLen(r)
	}
	return len(s), units == unit
}

// Lines splits source into lines on "\n". A trailing "\r" stays on its line
// so that columns match what was submitted.
func Lines(source string) []string {
	return strings.Split(source, "\n")
}

// Locate finds the fragment a message points at within source.
func Locate(source string, loc Location) (Span, error) {
	lines := Lines(source)
	idx := loc.LastLine - 1
	if idx < 0 || idx >= len(lines) {
		return Span{}, ErrOutOfRange
	}
	return Split(lines[idx], loc.Start(), loc.HiliteLength), nil
}

// ExtractSpan splits the checker's own extract of a message at the
// highlight offsets it reported.
func ExtractSpan(m model.Message) Span {
	return Split(m.Extract, m.HiliteStart, m.HiliteLength)
}

// ContextLine is one line of source shown around a message.
type ContextLine struct {
	// Number is the 1-based line number.
	Number int `json:"number"`

	// Text is the line content.
	Text string `json:"text"`

	// Span is set on the line the message points at.
	Span *Span `json:"span,omitempty"`
}

// Context returns the target line of loc with up to radius lines on each
// side. A negative radius is treated as zero.
func Context(source string, loc Location, radius int) ([]ContextLine, error) {
	lines := Lines(source)
	idx := loc.LastLine - 1
	if idx < 0 || idx >= len(lines) {
		return nil, ErrOutOfRange
	}
	if radius < 0 {
		radius = 0
	}

	from := max(idx-radius, 0)
	to := min(idx+radius, len(lines)-1)

	out := make([]ContextLine, 0, to-from+1)
	for i := from; i <= to; i++ {
		cl := ContextLine{Number: i + 1, Text: lines[i]}
		if i == idx {
			span := Split(lines[i], loc.Start(), loc.HiliteLength)
			cl.Span = &span
		}
		out = append(out, cl)
	}
	return out, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
