package logger

import (
	"os"
	"sync"
	"time"
)

var (
	globalMu     sync.RWMutex
	globalLogger Logger
	fallbackOnce sync.Once
	fallback     Logger
)

// SetGlobal installs the process-wide root logger.
func SetGlobal(l Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// Global returns the root logger, or a console logger at info level when
// none has been installed yet.
func Global() Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}
	fallbackOnce.Do(func() {
		fallback = NewSlogLogger(os.Stdout, LogLevelInfo, time.Local)
	})
	return fallback
}
