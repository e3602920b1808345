/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package runtime

import (
	"sync"

	"github.com/spiderwiz/fabric/core/object"
	"github.com/spiderwiz/fabric/core/reset"
)

// Factory constructs the initial field values for a freshly-created
// instance of code, local or inbound (spec §6, "registerFactory").
type Factory func(obj *object.Object)

// Hooks is the application-overridable lifecycle callback set for one
// object code (spec §6, "Object hooks").
type Hooks struct {
	// OnEvent fires synchronously, on the goroutine that applied the
	// inbound frame, after the object is in the tree and the frame's
	// values are set on it.
	OnEvent func(obj *object.Object)
	// OnAsyncEvent fires on the dispatcher pool after OnEvent. Its return
	// value is only logged: false logs that the lossless acknowledgement
	// is withheld. The runtime sends no ^ACK line for either value.
	OnAsyncEvent func(obj *object.Object) bool
	OnNew        func(obj *object.Object)
	OnRemoval    func(obj *object.Object)
	OnRename     func(obj *object.Object, oldID string)
}

// ResetHook is fired once, synchronously, the first time a code's resetter
// is created (spec §6, "Reset hook"), so the application can prime it.
type ResetHook func(r *reset.Resetter)

type codeBinding struct {
	factory   Factory
	hooks     Hooks
	resetHook ResetHook
}

// bindings holds the embedding surface's per-code registrations, kept
// separate from Runtime's transport/dispatch state so it can be read
// without touching the dispatcher lock.
type bindings struct {
	mu       sync.RWMutex
	byCode   map[object.Code]*codeBinding
	produced map[object.Code]bool
	consumed map[object.Code]bool
	lossless map[object.Code]bool
}

func newBindings() *bindings {
	return &bindings{
		byCode:   map[object.Code]*codeBinding{},
		produced: map[object.Code]bool{},
		consumed: map[object.Code]bool{},
		lossless: map[object.Code]bool{},
	}
}

func (b *bindings) binding(code object.Code) *codeBinding {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.byCode[code]
	if !ok {
		c = &codeBinding{}
		b.byCode[code] = c
	}
	return c
}

func (b *bindings) get(code object.Code) (*codeBinding, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.byCode[code]
	return c, ok
}

// RegisterFactory installs the constructor invoked once, right after the
// tree creates a bare instance of any of codes, local or inbound.
func (r *Runtime) RegisterFactory(factory Factory, codes ...object.Code) {
	for _, c := range codes {
		r.bindings.binding(c).factory = factory
	}
}

// DeclareProduced marks codes as produced by this node. It does not by
// itself configure any routing — a peer only receives a locally-committed
// object when its own login advertised that code as consumed (spec §4.4's
// Login.Consumed, enforced by Hub.Publish/Route). DeclareProduced only
// records the produced set, which ProducedCodes reports; the outgoing
// login carries consumed codes only.
func (r *Runtime) DeclareProduced(codes ...object.Code) {
	r.bindings.mu.Lock()
	defer r.bindings.mu.Unlock()
	for _, c := range codes {
		r.bindings.produced[c] = true
	}
}

// DeclareConsumed marks codes as consumed by this node, optionally
// lossless, advertised in the channel login handshake (spec §4.4, §6).
func (r *Runtime) DeclareConsumed(lossless bool, codes ...object.Code) {
	r.bindings.mu.Lock()
	defer r.bindings.mu.Unlock()
	for _, c := range codes {
		r.bindings.consumed[c] = true
		if lossless {
			r.bindings.lossless[c] = true
		}
	}
}

// SetHooks installs the lifecycle callbacks fired for instances of code.
func (r *Runtime) SetHooks(code object.Code, h Hooks) {
	r.bindings.binding(code).hooks = h
}

// SetResetHook installs the callback fired once, the first time code's
// resetter is created by a call to Runtime.Resetter.
func (r *Runtime) SetResetHook(code object.Code, h ResetHook) {
	r.bindings.binding(code).resetHook = h
}

// ProducedCodes and ConsumedCodes report the current declarations;
// ConsumedCodes builds the login handshake (spec §4.4's Login.Consumed).
func (r *Runtime) ProducedCodes() []object.Code {
	r.bindings.mu.RLock()
	defer r.bindings.mu.RUnlock()
	out := make([]object.Code, 0, len(r.bindings.produced))
	for c := range r.bindings.produced {
		out = append(out, c)
	}
	return out
}

func (r *Runtime) ConsumedCodes() (codes []object.Code, lossless map[object.Code]bool) {
	r.bindings.mu.RLock()
	defer r.bindings.mu.RUnlock()
	codes = make([]object.Code, 0, len(r.bindings.consumed))
	lossless = make(map[object.Code]bool, len(r.bindings.lossless))
	for c := range r.bindings.consumed {
		codes = append(codes, c)
	}
	for c := range r.bindings.lossless {
		lossless[c] = true
	}
	return codes, lossless
}
