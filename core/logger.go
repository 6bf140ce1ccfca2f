package core

// Logger is the application-wide logging contract.
// Implementations live in services/logger.
//
// Arguments may include an error, a map of extra fields, or the acting
// identity; implementations decide what to do with each.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
