// Package fabricerr implements the core's error taxonomy (spec §7): a
// closed set of recoverable error kinds, a single observability hook the
// embedding application may override, and the rule that no data error ever
// aborts the process.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package fabricerr

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/spiderwiz/fabric/cmn/nlog"
	"github.com/spiderwiz/fabric/metrics"
)

type Kind string

const (
	TransientIO    Kind = "TransientIO"
	OutOfSequence  Kind = "OutOfSequence"
	ParseError     Kind = "ParseError"
	FactoryMiss    Kind = "FactoryMiss"
	LosslessSkip   Kind = "LosslessSkip"
	BufferOverflow Kind = "BufferOverflow"
	QueryExpired   Kind = "QueryExpired"
	ConfigInvalid  Kind = "ConfigInvalid"
	FatalLocal     Kind = "FatalLocal"
)

// Hook is the application-overridable observability callback. The default
// implementation logs and bumps a per-kind counter; it never panics or
// exits the process.
type Hook func(kind Kind, message, detail string, critical bool)

var (
	mu   sync.RWMutex
	hook Hook = defaultHook
)

// SetHook installs the application's reportError override.
func SetHook(h Hook) {
	mu.Lock()
	defer mu.Unlock()
	if h == nil {
		h = defaultHook
		return
	}
	hook = h
}

// Report surfaces a recoverable error via the single observability hook.
// Critical errors mean the affected subsystem refuses to start; they never
// terminate the whole process.
func Report(kind Kind, message string, detail error, critical bool) {
	mu.RLock()
	h := hook
	mu.RUnlock()
	d := ""
	if detail != nil {
		d = detail.Error()
	}
	h(kind, message, d, critical)
}

func defaultHook(kind Kind, message, detail string, critical bool) {
	metrics.IncError(string(kind))
	if critical {
		nlog.Errorf("[%s][critical] %s: %s", kind, message, detail)
		return
	}
	nlog.Warningf("[%s] %s: %s", kind, message, detail)
}

// Wrap annotates err with kind-specific context using pkg/errors, matching
// the teacher's wrapping idiom.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "[%s] %s", kind, fmt.Sprintf(format, args...))
}
