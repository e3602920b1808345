/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package object

import (
	"sync"
)

// CommitSink receives locally committed mutations for propagation onto the
// mesh; core/runtime.Runtime implements this interface. Kept as a narrow interface so
// this package never imports the hub (spec "Design Notes": thread a single
// runtime context explicitly, no global singletons).
type CommitSink interface {
	Commit(obj *Object, destinations []string)
}

type treeNode struct {
	obj      *Object // nil only for the root sentinel
	mu       sync.RWMutex
	children map[Code]*bucket
}

func newTreeNode(obj *Object) *treeNode {
	return &treeNode{obj: obj, children: map[Code]*bucket{}}
}

func (n *treeNode) bucket(code Code, create bool) *bucket {
	n.mu.RLock()
	b, ok := n.children[code]
	n.mu.RUnlock()
	if ok || !create {
		return b
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if b, ok = n.children[code]; ok {
		return b
	}
	b = &bucket{byID: map[string]*treeNode{}}
	n.children[code] = b
	return b
}

func (n *treeNode) bucketsSnapshot() map[Code]*bucket {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make(map[Code]*bucket, len(n.children))
	for k, v := range n.children {
		out[k] = v
	}
	return out
}

type bucket struct {
	mu       sync.RWMutex
	byID     map[string]*treeNode
	obsolete []*treeNode // removed/renamed tombstones awaiting delivery
}

// Tree is the data-object tree rooted at a single ObjectCode-less, parent-
// less sentinel (spec §4.1).
type Tree struct {
	registry    *Registry
	root        *treeNode
	passThrough bool // configured pass-through: non-disposable objects aren't stored either
	sink        CommitSink

	// side index: arena-style handles standing in for parent/child back-
	// pointers, so *Object never needs a cyclic reference to its treeNode
	// (spec "Design Notes": arena + index in place of cyclic references).
	mu      sync.RWMutex
	index   map[*Object]*treeNode
	parents map[*treeNode]*treeNode
}

func NewTree(registry *Registry, passThrough bool) *Tree {
	return &Tree{
		registry:    registry,
		root:        newTreeNode(nil),
		passThrough: passThrough,
		index:       map[*Object]*treeNode{},
		parents:     map[*treeNode]*treeNode{},
	}
}

func (t *Tree) SetSink(sink CommitSink) { t.sink = sink }

// CreateTopLevelObject delegates to root.createChild (spec §4.1).
func (t *Tree) CreateTopLevelObject(code Code, id string) (*Object, bool) {
	obj, _, ok := t.createChild(t.root, code, id)
	return obj, ok
}

// CreateChild creates a child of parent, enforcing that the requested
// schema's ParentCode matches parent's code; returns (nil, false) otherwise.
func (t *Tree) CreateChild(parent *Object, code Code, id string) (*Object, bool) {
	if parent == nil {
		return nil, false
	}
	pn := t.findNode(parent)
	if pn == nil {
		return nil, false
	}
	obj, _, ok := t.createChild(pn, code, id)
	return obj, ok
}

func (t *Tree) createChild(parentNode *treeNode, code Code, id string) (*Object, *treeNode, bool) {
	schema, ok := t.registry.Lookup(code)
	if !ok {
		return nil, nil, false
	}
	var parentCode Code
	if parentNode.obj != nil {
		parentCode = parentNode.obj.Code()
	}
	if schema.ParentCode != parentCode {
		return nil, nil, false
	}

	var parentPath []string
	if parentNode.obj != nil {
		parentPath = parentNode.obj.KeyPath()
	}
	obj := newObject(schema, id, parentPath)
	node := newTreeNode(obj)

	if !schema.Disposable && !t.passThrough {
		b := parentNode.bucket(code, true)
		norm := obj.NormalizedID()
		b.mu.Lock()
		b.byID[norm] = node
		b.mu.Unlock()
	}

	t.mu.Lock()
	t.index[obj] = node
	t.parents[node] = parentNode
	t.mu.Unlock()

	return obj, node, true
}

// findNode resolves a caller-held *Object back to its tree position via the
// arena index populated at creation time.
func (t *Tree) findNode(obj *Object) *treeNode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.index[obj]
}

// GetChild looks up a non-obsolete child by code and id under parent
// (nil parent == top-level).
func (t *Tree) GetChild(parent *Object, code Code, id string) (*Object, bool) {
	pn := t.root
	if parent != nil {
		if n := t.findNode(parent); n != nil {
			pn = n
		} else {
			return nil, false
		}
	}
	schema, ok := t.registry.Lookup(code)
	if !ok {
		return nil, false
	}
	b := pn.bucket(code, false)
	if b == nil {
		return nil, false
	}
	norm := NormalizeID(schema, id)
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, ok := b.byID[norm]
	if !ok || n.obj.IsObsolete() {
		return nil, false
	}
	return n.obj, true
}

// Filter selects children during a depth-first traversal (spec §4.1).
type Filter struct {
	Code Code // "" means: search all buckets at every level
	Test func(*Object) bool
}

// GetFilteredChildren traverses depth-first from root (or from a subtree if
// start is non-nil). Obsolete children are skipped. Readers take each
// bucket's read lock only for the duration of its own iteration.
func (t *Tree) GetFilteredChildren(start *Object, filter Filter) []*Object {
	node := t.root
	if start != nil {
		if n := t.findNode(start); n != nil {
			node = n
		} else {
			return nil
		}
	}
	var out []*Object
	t.walk(node, filter, &out)
	return out
}

func (t *Tree) walk(node *treeNode, filter Filter, out *[]*Object) {
	buckets := node.bucketsSnapshot()
	if filter.Code != "" {
		if b, ok := buckets[filter.Code]; ok {
			t.scanBucket(b, filter, out)
		}
		// still recurse into all children looking for nested matches
		for _, b := range buckets {
			t.recurseInto(b, filter, out)
		}
		return
	}
	for _, b := range buckets {
		t.scanBucket(b, filter, out)
		t.recurseInto(b, filter, out)
	}
}

func (t *Tree) scanBucket(b *bucket, filter Filter, out *[]*Object) {
	b.mu.RLock()
	nodes := make([]*treeNode, 0, len(b.byID))
	for _, n := range b.byID {
		nodes = append(nodes, n)
	}
	b.mu.RUnlock()
	for _, n := range nodes {
		if n.obj.IsObsolete() {
			continue
		}
		if filter.Test == nil || filter.Test(n.obj) {
			*out = append(*out, n.obj)
		}
	}
}

func (t *Tree) recurseInto(b *bucket, filter Filter, out *[]*Object) {
	b.mu.RLock()
	nodes := make([]*treeNode, 0, len(b.byID))
	for _, n := range b.byID {
		nodes = append(nodes, n)
	}
	b.mu.RUnlock()
	for _, n := range nodes {
		t.walk(n, filter, out)
	}
}

// Rename atomically rewires the sibling bucket entry for obj to newId and
// returns an obsolete sentinel carrying the old id and the rename target
// (spec §4.1). The caller must Commit the returned sentinel to propagate.
func (t *Tree) Rename(obj *Object, newID string) (*Object, bool) {
	node := t.findNode(obj)
	if node == nil {
		return nil, false
	}
	parent := t.parentOf(node)
	if parent == nil {
		return nil, false
	}
	b := parent.bucket(obj.Code(), true)
	schema := obj.Schema
	newNorm := NormalizeID(schema, newID)

	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.byID[newNorm]; ok && !existing.obj.IsObsolete() {
		return nil, false
	}
	oldID := obj.ID()
	oldNorm := obj.NormalizedID()
	delete(b.byID, oldNorm)

	sentinel := newObject(schema, oldID, t.ancestorPath(node))
	sentinel.renameTo = newID
	sentinel.Meta = obj.Meta
	sentinelNode := newTreeNode(sentinel)
	b.obsolete = append(b.obsolete, sentinelNode)

	obj.mu.Lock()
	obj.id = newID
	obj.keyPath[len(obj.keyPath)-1] = newID
	obj.mu.Unlock()
	b.byID[newNorm] = node

	t.mu.Lock()
	t.index[sentinel] = sentinelNode
	t.parents[sentinelNode] = t.parents[node]
	t.mu.Unlock()

	return sentinel, true
}

func (t *Tree) ancestorPath(node *treeNode) []string {
	path := node.obj.KeyPath()
	if len(path) == 0 {
		return nil
	}
	return path[:len(path)-1]
}

func (t *Tree) parentOf(node *treeNode) *treeNode {
	if n, ok := t.parents[node]; ok {
		return n
	}
	return nil
}

// Commit publishes obj's current state to the mesh (spec "Embedding
// surface": object.commit([destinations])). Disposable objects are
// discarded from any further local bookkeeping immediately after the sink
// has accepted them for dispatch.
func (t *Tree) Commit(obj *Object, destinations ...string) {
	if t.sink != nil {
		t.sink.Commit(obj, destinations)
	}
	if obj.Schema.Disposable {
		t.mu.Lock()
		if n, ok := t.index[obj]; ok {
			delete(t.parents, n)
			delete(t.index, obj)
		}
		t.mu.Unlock()
	}
}
