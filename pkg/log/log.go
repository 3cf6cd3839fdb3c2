// Package log provides a leveled logger with structured logging support.
package log

var (
	// std is the name of the default logger.
	std = New()
)

// Default returns the standard logger, used where no logger was configured.
// It is highly recommended not to use it to avoid conflicts in tests.
func Default() Logger {
	return std
}
