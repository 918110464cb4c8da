package conf

import "github.com/tphakala/ppe-go/internal/logger"

// GetLogger returns the config module logger. It is resolved on every call
// because the central logger is installed after configuration loads.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
