package log

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// urlMask replaces secrets inside URLs. It needs no escaping.
const urlMask = "REDACTED"

// sensitiveKeys are attribute keys, header names and query parameters
// whose values are never logged.
var sensitiveKeys = map[string]bool{
	// HTTP headers sent when capturing pages
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"x-csrf-token":        true,

	// Query parameters and config values
	"password":      true,
	"passwd":        true,
	"secret":        true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"api-key":       true,
	"access_token":  true,
	"refresh_token": true,
	"id_token":      true,
	"sig":           true,
	"signature":     true,
	"session":       true,
	"session_id":    true,
	"sessionid":     true,
	"sid":           true,
	"jsessionid":    true,
	"credential":    true,
	"credentials":   true,
}

// sensitiveKeywords mark a key as sensitive when they appear anywhere in it.
// A bare "key" is not listed: "primary_key" or "monkey" are not secrets.
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "cookie", "credential",
}

// sensitivePatterns match values that are secrets whatever their key.
var sensitivePatterns = []*regexp.Regexp{
	// JWT
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	// Authorization header values
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	// AWS access keys
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
	// GitHub tokens
	regexp.MustCompile(`^gh[pousr]_[A-Za-z0-9]{36,}$`),
	// PEM private keys
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// SecureHandler wraps an slog.Handler and masks sensitive values before
// they reach it.
//
// Values are masked when their key is sensitive or when they look like a
// credential. URLs keep their host and path but lose passwords and
// sensitive query parameters. Header maps keep their names but lose the
// values of sensitive headers.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler creates a new SecureHandler wrapping the given handler.
// If handler is nil, slog.Default().Handler() is used.
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled reports whether the handler handles records at the given level.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle masks the record's attributes and passes it on.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a new handler with the given attributes masked and added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitized := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitized[i] = sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitized)}
}

// WithGroup returns a new handler with the given group name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

func sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		sanitized := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			sanitized[i] = sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitized...)}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, sanitizeString(a.Value.String()))
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case http.Header:
			return slog.Attr{Key: a.Key, Value: headerValue(v)}
		case map[string]string:
			return slog.Attr{Key: a.Key, Value: stringMapValue(v)}
		case *url.URL:
			if v != nil {
				return slog.String(a.Key, sanitizeURL(v))
			}
		case error:
			return slog.String(a.Key, sanitizeString(v.Error()))
		}
	}
	return a
}

// sanitizeString masks credential-like values and URL secrets.
func sanitizeString(s string) string {
	if isSensitiveValue(s) {
		return MaskValue
	}
	if strings.Contains(s, "://") {
		return sanitizeURLs(s)
	}
	return s
}

// sanitizeURLs masks secrets in every URL found in s, so error messages
// that quote a request URL are covered too.
func sanitizeURLs(s string) string {
	fields := strings.Fields(s)
	changed := false
	for i, f := range fields {
		trimmed := strings.Trim(f, `"'()<>,:;`)
		if !strings.Contains(trimmed, "://") {
			continue
		}
		u, err := url.Parse(trimmed)
		if err != nil || u.Host == "" {
			continue
		}
		if clean := sanitizeURL(u); clean != trimmed {
			fields[i] = strings.Replace(f, trimmed, clean, 1)
			changed = true
		}
	}
	if !changed {
		return s
	}
	return strings.Join(fields, " ")
}

// sanitizeURL drops the userinfo password and masks sensitive query values.
func sanitizeURL(u *url.URL) string {
	clean := *u
	if _, ok := clean.User.Password(); ok {
		clean.User = url.UserPassword(clean.User.Username(), urlMask)
	}
	if clean.RawQuery != "" {
		q := clean.Query()
		masked := false
		for key := range q {
			if isSensitiveKey(key) {
				q.Set(key, urlMask)
				masked = true
			}
		}
		if masked {
			clean.RawQuery = q.Encode()
		}
	}
	return clean.String()
}

func headerValue(h http.Header) slog.Value {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, sanitizeAttr(slog.String(k, strings.Join(h[k], ", "))))
	}
	return slog.GroupValue(attrs...)
}

func stringMapValue(m map[string]string) slog.Value {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, sanitizeAttr(slog.String(k, m[k])))
	}
	return slog.GroupValue(attrs...)
}

// isSensitiveKey reports whether values stored under key must be masked.
func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	if sensitiveKeys[key] {
		return true
	}
	for _, kw := range sensitiveKeywords {
		if strings.Contains(key, kw) {
			return true
		}
	}
	return false
}

// isSensitiveValue checks if a value matches sensitive patterns.
func isSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// NewSecureLogger creates a text logger writing to w that masks sensitive
// values. verbose lowers the level from Warn to Debug.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	textHandler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewSecureHandler(textHandler))
}
