// Package logging holds log handlers shared by the pipeline components.
package logging

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/log"
)

// Mask replaces every secret value in log output
const Mask = "*****"

// minSecretLength keeps short values such as "1" from masking unrelated text
const minSecretLength = 4

// RedactingHandler masks secret values in log records before passing them
// to the wrapped handler. Message text, string attributes and errors are
// all rewritten.
type RedactingHandler struct {
	next     slog.Handler
	replacer *strings.Replacer
}

var _ slog.Handler = (*RedactingHandler)(nil)

// NewRedactingHandler wraps next. Values shorter than four characters are
// not masked.
func NewRedactingHandler(next slog.Handler, secrets []string) *RedactingHandler {
	var values []string
	for _, s := range secrets {
		if len(s) >= minSecretLength {
			values = append(values, s)
		}
	}
	// Longest first so a secret containing another is masked whole
	sort.Slice(values, func(i, j int) bool { return len(values[i]) > len(values[j]) })

	pairs := make([]string, 0, 2*len(values))
	for _, v := range values {
		pairs = append(pairs, v, Mask)
	}
	return &RedactingHandler{next: next, replacer: strings.NewReplacer(pairs...)}
}

// NewRedactingLogger returns a logger writing through a RedactingHandler
// wrapped around the handler of logger. Without secrets logger is returned
// unchanged.
func NewRedactingLogger(logger log.Logger, secrets []string) log.Logger {
	if len(secrets) == 0 {
		return logger
	}
	return log.NewLogger(NewRedactingHandler(logger.Handler(), secrets))
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, h.redact(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		redacted = append(redacted, h.redactAttr(a))
	}
	return &RedactingHandler{next: h.next.WithAttrs(redacted), replacer: h.replacer}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name), replacer: h.replacer}
}

func (h *RedactingHandler) redact(s string) string {
	return h.replacer.Replace(s)
}

func (h *RedactingHandler) redactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.redact(v.String()))
	case slog.KindGroup:
		group := v.Group()
		redacted := make([]slog.Attr, 0, len(group))
		for _, ga := range group {
			redacted = append(redacted, h.redactAttr(ga))
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redacted...)}
	case slog.KindAny:
		switch x := v.Any().(type) {
		case error:
			return slog.String(a.Key, h.redact(x.Error()))
		case []string:
			out := make([]string, len(x))
			for i, s := range x {
				out[i] = h.redact(s)
			}
			return slog.Any(a.Key, out)
		case map[string]string:
			out := make(map[string]string, len(x))
			for k, s := range x {
				out[k] = h.redact(s)
			}
			return slog.Any(a.Key, out)
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}
