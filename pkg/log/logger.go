// Package log is the logging facade used across kinsim. Components receive a
// Logger and tag it with their name via Component.
package log

// ComponentField is rendered in brackets right after the level instead of as
// a trailing key=value pair.
const ComponentField = "component"

// Logger is the printf-style logger every kinsim component depends on.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})

	// WithField returns a logger that appends key=value to every entry.
	WithField(key string, value interface{}) Logger
	// WithFields is WithField for several pairs at once.
	WithFields(fields map[string]interface{}) Logger
}

// Component is shorthand for WithField(ComponentField, name).
func Component(l Logger, name string) Logger {
	return l.WithField(ComponentField, name)
}
