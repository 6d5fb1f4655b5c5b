package core

// Logger is the operator-facing log sink.
// args may carry errors, maps of extra data and the acting principal.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// LogIdentity is implemented by values that identify the person a log entry is about.
type LogIdentity interface {
	LogID() string
	LogName() string
	LogEmail() string
}
