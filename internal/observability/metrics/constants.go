// Package metrics defines the Prometheus collectors exported by PPE-Go.
package metrics

import "time"

// ShutdownTimeout bounds graceful shutdown of the metrics server.
const ShutdownTimeout = 5 * time.Second

const (
	statusSuccess = "success"
	statusError   = "error"
)
