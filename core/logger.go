package core

// Logger is any service that can report application events.
// args may hold errors, maps of extra data or domain objects identifying the subject of the event.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
