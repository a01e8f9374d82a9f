package httpserver

import "time"

// ShutdownTimeout bounds graceful shutdown, including draining media workers and stopping
// scheduled jobs after the listener closes.
var ShutdownTimeout = 30 * time.Second
