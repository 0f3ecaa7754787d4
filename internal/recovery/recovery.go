// internal/recovery/recovery.go
package recovery

import (
	"fmt"
	"os"
	"runtime/debug"
	"sync/atomic"

	"go.uber.org/zap"
)

var logger atomic.Pointer[zap.Logger]

// SetLogger makes panic reports also go through log, which is flushed before
// the process exits. Pass nil to detach.
func SetLogger(log *zap.Logger) {
	logger.Store(log)
}

// HandlePanic should be deferred at the top of main() or goroutines.
// It logs panic details and exits with code 1.
func HandlePanic() {
	if r := recover(); r != nil {
		report(r)
		os.Exit(1)
	}
}

// HandlePanicFunc logs panic details and calls the provided cleanup function.
func HandlePanicFunc(cleanup func()) {
	if r := recover(); r != nil {
		report(r)
		if cleanup != nil {
			cleanup()
		}
		os.Exit(1)
	}
}

func report(r any) {
	stack := debug.Stack()
	_, _ = fmt.Fprintf(os.Stderr, "FATAL: %v\n\nStack trace:\n%s\n", r, stack)
	if log := logger.Load(); log != nil {
		log.Error("panic", zap.Any("value", r), zap.ByteString("stack", stack))
		_ = log.Sync()
	}
}
