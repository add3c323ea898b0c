package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Redactor masks credentials in log output: the upstream password, bearer
// tokens and anything logged under a credential-sounding key.
type Redactor struct {
	patterns []redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// sensitiveKeys are attribute key fragments whose values are always masked.
var sensitiveKeys = []string{
	"password", "passwd", "pwd",
	"secret", "token", "authorization", "cookie",
}

// NewRedactor creates a Redactor with the built-in patterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []redactPattern{
			{
				// Bearer tokens in header dumps or error text
				regex:       regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`),
				replacement: "Bearer ***",
			},
			{
				// JWTs appearing anywhere
				regex:       regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]*`),
				replacement: "***",
			},
			{
				// password=..., "password":"..."
				regex:       regexp.MustCompile(`(?i)("?(?:password|passwd|pwd)"?\s*[:=]\s*)("[^"]*"|[^\s,&}]+)`),
				replacement: "${1}***",
			},
		},
	}
}

// RedactString masks credentials inside a free-form string.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// RedactAttr returns attr with its value masked when the key is sensitive,
// or with credential patterns removed from string values. Groups are
// processed recursively.
func (r *Redactor) RedactAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindGroup {
		group := attr.Value.Group()
		redacted := make([]any, len(group))
		for i, a := range group {
			redacted[i] = r.RedactAttr(a)
		}
		return slog.Group(attr.Key, redacted...)
	}

	if isSensitiveKey(attr.Key) {
		return slog.String(attr.Key, maskValue(attr.Value))
	}

	switch attr.Value.Kind() {
	case slog.KindString:
		return slog.String(attr.Key, r.RedactString(attr.Value.String()))
	case slog.KindAny:
		if err, ok := attr.Value.Any().(error); ok {
			return slog.String(attr.Key, r.RedactString(err.Error()))
		}
	}
	return attr
}

// isSensitiveKey checks if a key name indicates credential data.
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}

// maskValue keeps a short prefix of long values so that different tokens
// can still be told apart in the logs.
func maskValue(v slog.Value) string {
	s := v.String()
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "***"
}

// RedactingHandler is a slog.Handler that passes every attribute through a
// Redactor before delegating.
type RedactingHandler struct {
	next     slog.Handler
	redactor *Redactor
}

// NewRedactingHandler wraps next.
func NewRedactingHandler(next slog.Handler, redactor *Redactor) *RedactingHandler {
	return &RedactingHandler{next: next, redactor: redactor}
}

// Enabled implements slog.Handler.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *RedactingHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, h.redactor.RedactString(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redactor.RedactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redactor.RedactAttr(a)
	}
	return &RedactingHandler{next: h.next.WithAttrs(redacted), redactor: h.redactor}
}

// WithGroup implements slog.Handler.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name), redactor: h.redactor}
}
