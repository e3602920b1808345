/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

type ErrNotFound struct{ what string }

func NewErrNotFound(format string, a ...any) *ErrNotFound {
	return &ErrNotFound{fmt.Sprintf(format, a...)}
}

func (e *ErrNotFound) Error() string { return e.what + " does not exist" }

func IsErrNotFound(err error) bool {
	var e *ErrNotFound
	return errors.As(err, &e)
}

// Errs accumulates up to maxErrs distinct errors, deduplicated by message;
// used where a subsystem must keep running after a recoverable error and
// report the first few causes once asked.
type Errs struct {
	errs []error
	mu   sync.Mutex
}

const maxErrs = 4

func (e *Errs) Add(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, added := range e.errs {
		if added.Error() == err.Error() {
			return
		}
	}
	if len(e.errs) < maxErrs {
		e.errs = append(e.errs, err)
	}
}

func (e *Errs) Cnt() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.errs)
}

func (e *Errs) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.errs) == 0 {
		return ""
	}
	err := e.errs[0]
	if len(e.errs) > 1 {
		return fmt.Sprintf("%v (and %d more)", err, len(e.errs)-1)
	}
	return err.Error()
}

const fatalPrefix = "FATAL ERROR: "

// ExitLogf logs, flushes, and terminates the process; reserved for
// ConfigInvalid-class startup failures where no partial init is acceptable.
func ExitLogf(logf func(string, ...any), flush func(...bool), format string, a ...any) {
	msg := fmt.Sprintf(fatalPrefix+format, a...)
	if logf != nil {
		logf(msg)
	}
	if flush != nil {
		flush(true)
	}
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
