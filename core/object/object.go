/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package object

import (
	"strings"
	"sync"
	"time"
)

// Meta holds the runtime metadata carried alongside every object that is
// not itself a serializable field (spec §3 "Runtime metadata").
type Meta struct {
	Origin    string // originating node UUID
	ObjSeq    uint64 // object-level sequence number per (origin, ObjectCode)
	Timestamp time.Time
	Raw       string // raw inbound string, for debugging
	UserLabel string
}

// Object is one data-object instance: identity, key-path, field values and
// lifecycle flags. Instances are created only through Tree.CreateChild (or
// parsed off the wire); mutation of Values is only valid for the producer,
// who must call Commit to share a change.
type Object struct {
	Schema *Schema

	mu       sync.RWMutex
	id       string   // this object's own id component
	keyPath  []string // ancestor ids, root-down, including this object's id last
	Values   map[string]any
	Meta     Meta
	removed  bool
	renameTo string // non-empty iff this is an obsolete rename sentinel
}

func newObject(schema *Schema, id string, parentPath []string) *Object {
	kp := make([]string, len(parentPath)+1)
	copy(kp, parentPath)
	kp[len(parentPath)] = id
	return &Object{
		Schema:  schema,
		id:      id,
		keyPath: kp,
		Values:  map[string]any{},
		Meta:    Meta{Timestamp: time.Now()},
	}
}

func (o *Object) Code() Code { return o.Schema.Code }

func (o *Object) ID() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.id
}

// KeyPath returns the ordered ancestor ids from the root down to (and
// including) this object.
func (o *Object) KeyPath() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]string, len(o.keyPath))
	copy(out, o.keyPath)
	return out
}

// NormalizedID returns o.ID() lowercased when the type is case-insensitive,
// applied consistently on store, lookup, rename and wire encoding.
func (o *Object) NormalizedID() string { return NormalizeID(o.Schema, o.ID()) }

func NormalizeID(s *Schema, id string) string {
	if s.CaseSensitiveID {
		return id
	}
	return strings.ToLower(id)
}

// IsObsolete reports whether o is marked removed or carries a non-empty
// rename target: obsolete objects are not returned by lookups but remain
// reachable for propagation until fully delivered.
func (o *Object) IsObsolete() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.removed || o.renameTo != ""
}

func (o *Object) IsRemoved() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.removed
}

func (o *Object) RenameTarget() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.renameTo
}

// Remove marks o removed. The caller must still Commit to propagate the
// removal on the wire.
func (o *Object) Remove() {
	o.mu.Lock()
	o.removed = true
	o.mu.Unlock()
}

// Get/Set operate on the field-value map using the schema's declared,
// append-only field list — the registration-based stand-in for reflection.
func (o *Object) Get(field string) any {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.Values[field]
}

func (o *Object) Set(field string, v any) {
	o.mu.Lock()
	o.Values[field] = v
	o.mu.Unlock()
}

// Snapshot returns a shallow copy of the current field values, safe to hand
// to the codec for serialization without holding o's lock.
func (o *Object) Snapshot() map[string]any {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]any, len(o.Values))
	for k, v := range o.Values {
		out[k] = v
	}
	return out
}
