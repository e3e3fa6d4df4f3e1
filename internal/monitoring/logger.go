// Package monitoring is the logging seam shared by the planner,
// simulator, and HTTP layer.
package monitoring

import (
	"fmt"
	"log"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Capture redirects Logf into a buffer and returns it along with a
// restore function. Test helper for asserting on warning output.
func Capture() (logs *[]string, restore func()) {
	prev := Logf
	buf := &[]string{}
	Logf = func(format string, v ...interface{}) {
		*buf = append(*buf, fmt.Sprintf(format, v...))
	}
	return buf, func() { Logf = prev }
}
