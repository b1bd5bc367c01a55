// internal/recovery/recovery.go
package recovery

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"
)

// ErrPanic is wrapped by every error produced by CatchPanic
var ErrPanic = errors.New("recovered panic")

// PanicError carries a recovered panic value and the stack it was raised on.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%v: %v", ErrPanic, e.Value)
}

func (e *PanicError) Unwrap() error { return ErrPanic }

// HandlePanic should be deferred at the top of main().
// It logs panic details and exits with code 1.
func HandlePanic() {
	if r := recover(); r != nil {
		_, _ = fmt.Fprintf(os.Stderr, "FATAL: %v\n\nStack trace:\n%s\n", r, debug.Stack())
		os.Exit(1)
	}
}

// CatchPanic should be deferred in worker goroutines that return an error.
// A panic is converted into a *PanicError stored in *errp, so one bad block
// fails its batch instead of the whole process.
//
//	func (w *worker) run() (err error) {
//		defer recovery.CatchPanic(&err)
//		...
//	}
func CatchPanic(errp *error) {
	if r := recover(); r != nil {
		perr := &PanicError{Value: r, Stack: debug.Stack()}
		if errp != nil {
			*errp = perr
		}
	}
}
