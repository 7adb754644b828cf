package safego

import (
	"os"
	"runtime/debug"
	"strings"

	"github.com/datazip-inc/rxmongo/utils/logger"
)

// RecoverHandler is invoked with the recovered value when a goroutine started
// through Run panics.
type RecoverHandler func(value interface{})

var GlobalRecoverHandler RecoverHandler = func(value interface{}) {
	logger.Errorf("goroutine panic recovered: %v", value)
	for _, line := range strings.Split(string(debug.Stack()), "\n") {
		logger.Error(strings.ReplaceAll(line, "\t", ""))
	}
}

// Run starts f on a new goroutine with a panic handler attached. Completion
// callbacks routed through Run therefore never unwind into caller stacks.
func Run(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				GlobalRecoverHandler(r)
			}
		}()
		f()
	}()
}

// Recovery is a deferred top-level guard for main goroutines.
func Recovery(exit bool) {
	if err := recover(); err != nil {
		logger.Error(err)
		for _, line := range strings.Split(string(debug.Stack()), "\n") {
			logger.Error(strings.ReplaceAll(line, "\t", ""))
		}
		if exit {
			os.Exit(1)
		}
	}
}
