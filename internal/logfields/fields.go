// Package logfields gives the routing pipeline a fluent, typed way to
// attach structured context to a log line instead of interpolating values
// into a format string. Every component logs a fingerprint and a component
// tag through this builder so a single fingerprint's journey through the
// pipeline can be grepped out of the log stream.
package logfields

import (
	"time"

	"go.uber.org/zap"
)

// Fields accumulates zap fields through a chain of typed setters.
type Fields struct {
	fields []zap.Field
}

// New starts an empty field set.
func New() *Fields {
	return &Fields{}
}

// Component tags the log line with the component name (e.g. "C7").
func (f *Fields) Component(name string) *Fields {
	f.fields = append(f.fields, zap.String("component", name))
	return f
}

// Operation tags the log line with the operation being performed.
func (f *Fields) Operation(op string) *Fields {
	f.fields = append(f.fields, zap.String("operation", op))
	return f
}

// Fingerprint tags the log line with the error fingerprint it concerns.
func (f *Fields) Fingerprint(fp string) *Fields {
	if fp == "" {
		return f
	}
	f.fields = append(f.fields, zap.String("fingerprint", fp))
	return f
}

// SkippedReason tags the log line with the machine-readable reason a
// route call was skipped.
func (f *Fields) SkippedReason(reason string) *Fields {
	if reason == "" {
		return f
	}
	f.fields = append(f.fields, zap.String("skipped_reason", reason))
	return f
}

// Duration records an elapsed time in milliseconds.
func (f *Fields) Duration(d time.Duration) *Fields {
	f.fields = append(f.fields, zap.Int64("duration_ms", d.Milliseconds()))
	return f
}

// Err attaches an error, if non-nil.
func (f *Fields) Err(err error) *Fields {
	if err == nil {
		return f
	}
	f.fields = append(f.fields, zap.Error(err))
	return f
}

// Str attaches an arbitrary string field.
func (f *Fields) Str(key, value string) *Fields {
	f.fields = append(f.fields, zap.String(key, value))
	return f
}

// Int attaches an arbitrary int field.
func (f *Fields) Int(key string, value int) *Fields {
	f.fields = append(f.fields, zap.Int(key, value))
	return f
}

// Bool attaches an arbitrary bool field.
func (f *Fields) Bool(key string, value bool) *Fields {
	f.fields = append(f.fields, zap.Bool(key, value))
	return f
}

// Build returns the accumulated zap fields for use with a *zap.Logger call.
func (f *Fields) Build() []zap.Field {
	return f.fields
}
