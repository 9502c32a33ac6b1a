package flowlog

import "github.com/sirupsen/logrus"

// Logrus adapts a *logrus.Logger (or Entry) to Logger. cmd/flowctl hands one
// to runtime.New; a Runtime built without a logger uses Nop instead.
// Grounded on the teacher's own use of logrus as its logging backbone.
type Logrus struct {
	entry *logrus.Entry
}

// NewLogrus wraps l's standard entry.
func NewLogrus(l *logrus.Logger) *Logrus {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &Logrus{entry: logrus.NewEntry(l)}
}

func (l *Logrus) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }
func (l *Logrus) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Logrus) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Logrus) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }

func (l *Logrus) WithFields(f Fields) Logger {
	return &Logrus{entry: l.entry.WithFields(logrus.Fields(f))}
}

// PrefixFormatter prepends a fixed byte prefix to every formatted entry,
// adapted from the teacher's logutil.PrefixFormatter: useful for tagging a
// node's log lines with its node id without plumbing the id through every
// call site.
type PrefixFormatter struct {
	logrus.Formatter
	prefix []byte
}

func NewPrefixFormatter(formatter logrus.Formatter, prefix string) *PrefixFormatter {
	return &PrefixFormatter{
		Formatter: formatter,
		prefix:    []byte(prefix),
	}
}

func (f *PrefixFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	orig, err := f.Formatter.Format(entry)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(f.prefix)+len(orig))
	out = append(out, f.prefix...)
	out = append(out, orig...)
	return out, nil
}
