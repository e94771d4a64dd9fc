//go:build !occa_unchecked

package assert

import (
	"fmt"
	"runtime"
)

func check(cond bool, format string, args ...any) {
	if cond {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if pc, file, line, ok := runtime.Caller(2); ok {
		fn := runtime.FuncForPC(pc)
		name := "unknown"
		if fn != nil {
			name = fn.Name()
		}
		panic(fmt.Sprintf("occa: assertion failed: %s (%s:%d in %s)", msg, file, line, name))
	}
	panic(fmt.Sprintf("occa: assertion failed: %s", msg))
}
