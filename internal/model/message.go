package model

// Message types and subtypes reported by the Nu HTML Checker.
// See https://github.com/validator/validator/wiki/Output-»-JSON.
const (
	// TypeError is a document conformance error.
	TypeError = "error"

	// TypeInfo is an informational message. Warnings are infos with the
	// "warning" subtype.
	TypeInfo = "info"

	// TypeNonDocumentError reports a problem unrelated to the document itself,
	// such as an I/O failure on the checker side.
	TypeNonDocumentError = "non-document-error"

	// SubTypeFatal marks an error after which the checker stopped.
	SubTypeFatal = "fatal"

	// SubTypeWarning marks an info message that is a warning.
	SubTypeWarning = "warning"
)

// ValidationMessage is a single message as returned by the checker's
// out=json output. It is never modified after decoding.
//
// Numeric position fields use zero for "absent". The checker never reports
// a zero line or column, so zero is unambiguous.
type ValidationMessage struct {
	// Type is "error", "info" or "non-document-error".
	Type string `json:"type"`

	// SubType refines Type ("fatal", "warning", "io", "schema", "internal").
	SubType string `json:"subType,omitempty"`

	// Message is the human-readable diagnostic.
	Message string `json:"message"`

	// Extract is a snippet of source around the problem.
	Extract string `json:"extract,omitempty"`

	// FirstLine is the 1-based first line of the range. The checker omits it
	// when it equals LastLine.
	FirstLine int `json:"firstLine,omitempty"`

	// FirstColumn is the 1-based first column of the range.
	FirstColumn int `json:"firstColumn,omitempty"`

	// LastLine is the 1-based last line of the range.
	LastLine int `json:"lastLine,omitempty"`

	// LastColumn is the 1-based last column of the range.
	LastColumn int `json:"lastColumn,omitempty"`

	// HiliteStart is the offset of the offending fragment within Extract.
	HiliteStart int `json:"hiliteStart,omitempty"`

	// HiliteLength is the length of the offending fragment.
	HiliteLength int `json:"hiliteLength,omitempty"`

	// URL is the document URL the message refers to, if the checker knows it.
	URL string `json:"url,omitempty"`
}

// Message is a ValidationMessage with its grouping kind resolved.
type Message struct {
	ValidationMessage

	// Kind is SubType when present, otherwise Type. It is the value shown as
	// the message badge and the one matched by type filters.
	Kind string `json:"kind"`
}

// Normalize resolves the kind of a raw message.
func Normalize(raw ValidationMessage) Message {
	kind := raw.SubType
	if kind == "" {
		kind = raw.Type
	}
	return Message{ValidationMessage: raw, Kind: kind}
}

// NormalizeAll normalizes messages in order.
func NormalizeAll(raw []ValidationMessage) []Message {
	out := make([]Message, len(raw))
	for i, m := range raw {
		out[i] = Normalize(m)
	}
	return out
}

// Level orders message kinds by how serious they are.
// It is used to decide the exit status of a run.
type Level int

const (
	// LevelNone means no message.
	LevelNone Level = iota

	// LevelInfo covers plain informational messages.
	LevelInfo

	// LevelWarning covers info messages with the warning subtype.
	LevelWarning

	// LevelError covers errors, fatal errors and non-document errors.
	LevelError
)

// String returns the lowercase name of the level.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel parses the output of Level.String.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "none":
		return LevelNone, true
	case "info":
		return LevelInfo, true
	case "warning":
		return LevelWarning, true
	case "error":
		return LevelError, true
	default:
		return LevelNone, false
	}
}

// Level returns the level of the message.
func (m Message) Level() Level {
	switch m.Type {
	case TypeError, TypeNonDocumentError:
		return LevelError
	case TypeInfo:
		if m.SubType == SubTypeWarning {
			return LevelWarning
		}
		return LevelInfo
	default:
		return LevelInfo
	}
}
