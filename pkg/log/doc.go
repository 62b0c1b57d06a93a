// Package log provides structured logging for clusterd using zerolog.
//
// A single global Logger is configured once via Init and component
// loggers are derived from it with WithComponent/WithClusterID/
// WithNodeID/WithActionID so every subsystem's log lines carry
// consistent context fields without threading a logger through every
// call.
package log
