package core

// Logger is the application logger.
// args may hold an error, a map[string]interface{} of extra fields and the policy.Actor behind the call.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
