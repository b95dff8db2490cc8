// Package goroutine provides helpers for launching goroutines that must not
// take the process down when they panic.
package goroutine

import (
	"fmt"
	"runtime/debug"

	"github.com/orris-inc/livedesk/internal/shared/logger"
)

// SafeGo runs fn in a new goroutine and logs, instead of propagating, a panic.
func SafeGo(log logger.Interface, name string, fn func()) {
	go Run(log, name, fn)
}

// Run executes fn on the calling goroutine with the same panic handling as
// SafeGo. It reports whether fn returned normally.
func Run(log logger.Interface, name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("goroutine panicked",
				"goroutine", name,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			ok = false
		}
	}()
	fn()
	return true
}
