// Package monitoring carries the process-wide diagnostic logger.
package monitoring

import "log"

// Logf is the diagnostic logger for the sweep engine. It defaults to
// log.Printf; callers may redirect or mute it via SetLogger. Warnings that
// must not abort a run (output write failures, ignored spin overrides) go
// through here rather than the operator progress stream.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
