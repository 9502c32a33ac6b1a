// Package flowlog is the "logging facility" collaborator from spec §6: the
// core only ever talks to this interface, never to a concrete logging
// library directly, so a host can plug in whatever it already uses.
package flowlog

// Logger accepts printf-style formatting, matching the collaborator
// contract in spec §6 ("accepts error/warning/info/debug with printf-style
// formatting").
type Logger interface {
	Errorf(format string, args ...any)
	Warnf(format string, args ...any)
	Infof(format string, args ...any)
	Debugf(format string, args ...any)
}

// Fields attaches structured context to a log line without forcing every
// call site to format it into the message itself.
type Fields map[string]any

// FieldLogger is a Logger that can also carry structured fields, for sites
// that want to tag a line with e.g. a node id or connection id.
type FieldLogger interface {
	Logger
	WithFields(Fields) Logger
}

// nop is the zero-value-safe default so a Runtime built without an explicit
// logger never nil-derefs.
type nop struct{}

func (nop) Errorf(string, ...any) {}
func (nop) Warnf(string, ...any)  {}
func (nop) Infof(string, ...any)  {}
func (nop) Debugf(string, ...any) {}

// Nop is a Logger that discards everything.
var Nop Logger = nop{}
