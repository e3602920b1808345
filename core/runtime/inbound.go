/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package runtime

import (
	"fmt"

	"github.com/spiderwiz/fabric/cmn/nlog"
	"github.com/spiderwiz/fabric/core/object"
	"github.com/spiderwiz/fabric/core/wire"
	"github.com/spiderwiz/fabric/fabricerr"
)

// CreateObject creates a local top-level or nested instance of code,
// running its registered Factory (if any) and firing OnNew before handing
// the object back to the caller for field population and Commit (spec §6).
func (r *Runtime) CreateObject(parent *object.Object, code object.Code, id string) (*object.Object, bool) {
	var (
		obj *object.Object
		ok  bool
	)
	if parent == nil {
		obj, ok = r.Tree.CreateTopLevelObject(code, id)
	} else {
		obj, ok = r.Tree.CreateChild(parent, code, id)
	}
	if !ok {
		return nil, false
	}
	r.initNew(obj)
	return obj, true
}

func (r *Runtime) initNew(obj *object.Object) {
	b, ok := r.bindings.get(obj.Code())
	if !ok {
		return
	}
	if b.factory != nil {
		b.factory(obj)
	}
	if b.hooks.OnNew != nil {
		b.hooks.OnNew(obj)
	}
}

// ApplyFrame reconstructs or updates the tree object addressed by f and
// fires the matching lifecycle hooks (spec §6). It resolves f.KeyPath by
// walking the registered schema's ancestor chain, creating any missing
// intermediate nodes along the way — the wire format carries one explicit
// Code (the leaf's) and relies on the schema registry for the rest, the
// same registration-based stand-in for reflection core/object uses
// everywhere else.
func (r *Runtime) ApplyFrame(f *wire.Frame) error {
	schema, ok := r.Registry.Lookup(object.Code(f.Code))
	if !ok {
		fabricerr.Report(fabricerr.FactoryMiss, "unknown object code on inbound frame", fmt.Errorf("code %q", f.Code), false)
		return fmt.Errorf("runtime: unknown object code %q", f.Code)
	}
	if len(f.KeyPath) == 0 {
		return fmt.Errorf("runtime: frame for %q carries an empty key path", f.Code)
	}

	leafID := f.KeyPath[len(f.KeyPath)-1]
	parent, err := r.resolveAncestors(schema, f.KeyPath[:len(f.KeyPath)-1])
	if err != nil {
		return err
	}

	obj, existed := r.Tree.GetChild(parent, object.Code(f.Code), leafID)
	isNew := !existed
	if isNew {
		var ok bool
		obj, ok = r.createAt(parent, object.Code(f.Code), leafID)
		if !ok {
			fabricerr.Report(fabricerr.ParseError, "failed to materialize inbound object", fmt.Errorf("code %q", f.Code), false)
			return fmt.Errorf("runtime: could not create %q/%v", f.Code, f.KeyPath)
		}
	}

	obj.Meta.Origin = f.Origin
	obj.Meta.ObjSeq = f.ObjSeq

	switch {
	case f.Removed:
		obj.Remove()
		r.fireRemoval(obj)
	case f.RenameTo != "":
		renamed, ok := r.Tree.Rename(obj, f.RenameTo)
		if !ok {
			fabricerr.Report(fabricerr.ParseError, "rename target already occupied", fmt.Errorf("code %q", f.Code), false)
			return fmt.Errorf("runtime: rename of %q/%s to %q rejected", f.Code, leafID, f.RenameTo)
		}
		_ = renamed // renamed is the obsolete old-id sentinel; obj itself now carries the new id
		r.fireRename(obj, leafID)
	default:
		_, values, err := wire.DeserializeKeyframe(f, r.Registry)
		if err != nil {
			fabricerr.Report(fabricerr.ParseError, "malformed inbound keyframe", err, false)
			return err
		}
		applyValues(obj, values)
		if isNew {
			r.initNew(obj)
		}
		r.fireEvent(obj)
	}
	return nil
}

func applyValues(obj *object.Object, values map[string]any) {
	for k, v := range values {
		obj.Set(k, v)
	}
}

// resolveAncestors walks leaf's ParentCode chain outward-in (root-down) to
// rebuild the code at each level of path, creating missing tree nodes.
func (r *Runtime) resolveAncestors(leaf *object.Schema, path []string) (*object.Object, error) {
	codes := ancestorCodes(r.Registry, leaf)
	if len(codes) != len(path) {
		return nil, fmt.Errorf("runtime: key path depth %d does not match schema depth %d for %q", len(path), len(codes), leaf.Code)
	}
	var parent *object.Object
	for i, code := range codes {
		id := path[i]
		obj, ok := r.Tree.GetChild(parent, code, id)
		if !ok {
			var created bool
			obj, created = r.createAt(parent, code, id)
			if !created {
				return nil, fmt.Errorf("runtime: could not materialize ancestor %q/%s", code, id)
			}
		}
		parent = obj
	}
	return parent, nil
}

func ancestorCodes(reg *object.Registry, leaf *object.Schema) []object.Code {
	var chain []object.Code
	code := leaf.ParentCode
	for code != "" {
		chain = append([]object.Code{code}, chain...)
		s, ok := reg.Lookup(code)
		if !ok {
			break
		}
		code = s.ParentCode
	}
	return chain
}

func (r *Runtime) createAt(parent *object.Object, code object.Code, id string) (*object.Object, bool) {
	if parent == nil {
		return r.Tree.CreateTopLevelObject(code, id)
	}
	return r.Tree.CreateChild(parent, code, id)
}

func (r *Runtime) fireEvent(obj *object.Object) {
	b, ok := r.bindings.get(obj.Code())
	if !ok {
		return
	}
	if b.hooks.OnEvent != nil {
		b.hooks.OnEvent(obj)
	}
	if b.hooks.OnAsyncEvent != nil {
		r.Dispatch(func() {
			if !b.hooks.OnAsyncEvent(obj) {
				nlog.Infof("runtime: %s/%s withheld lossless acknowledgement", obj.Code(), obj.ID())
			}
		})
	}
}

func (r *Runtime) fireRemoval(obj *object.Object) {
	b, ok := r.bindings.get(obj.Code())
	if !ok || b.hooks.OnRemoval == nil {
		return
	}
	r.Dispatch(func() { b.hooks.OnRemoval(obj) })
}

func (r *Runtime) fireRename(obj *object.Object, oldID string) {
	b, ok := r.bindings.get(obj.Code())
	if !ok || b.hooks.OnRename == nil {
		return
	}
	r.Dispatch(func() { b.hooks.OnRename(obj, oldID) })
}
