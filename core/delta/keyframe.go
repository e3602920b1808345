/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package delta

import "sync"

// Table holds, for one (channel, ObjectCode) pair, the last known full
// field-value snapshot of every distinct key-path and the last objSeq seen
// per origin (spec §4.2). A sequence-0 reset marker clears both.
type Table struct {
	mu       sync.Mutex
	fields   map[string][]string // key-path -> last known per-field wire text
	objSeqs  map[string]uint64   // origin -> last objSeq
}

func NewTable() *Table {
	return &Table{fields: map[string][]string{}, objSeqs: map[string]uint64{}}
}

// Reset clears both tables (spec §4.3: "received == 0: reset marker —
// clear counter, keyframe tables, counter tables").
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fields = map[string][]string{}
	t.objSeqs = map[string]uint64{}
}

// CompressFields returns the per-field wire text to transmit for keyPath:
// a literal keyframe the first time this key-path is seen on this table,
// or a per-field delta against the last known snapshot afterward. It
// always updates the table to cur before returning.
func (t *Table) CompressFields(keyPath string, fields []string) (isKeyframe bool, out []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, ok := t.fields[keyPath]
	out = make([]string, len(fields))
	if !ok || len(prev) != len(fields) {
		copy(out, fields)
		isKeyframe = true
	} else {
		for i := range fields {
			out[i] = EncodeString(prev[i], fields[i])
		}
	}
	stored := make([]string, len(fields))
	copy(stored, fields)
	t.fields[keyPath] = stored
	return isKeyframe, out
}

// DecompressFields is CompressFields's receive-side inverse: given the
// wire text for keyPath (literal on first sight, delta thereafter) it
// reconstructs and stores the full field values.
func (t *Table) DecompressFields(keyPath string, wireFields []string, fieldCount int) (isKeyframe bool, out []string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, ok := t.fields[keyPath]
	out = make([]string, len(wireFields))
	if !ok || len(prev) != fieldCount {
		copy(out, wireFields)
		isKeyframe = true
	} else {
		for i, w := range wireFields {
			v, derr := DecodeString(prev[i], w)
			if derr != nil {
				return false, nil, derr
			}
			out[i] = v
		}
	}
	stored := make([]string, len(out))
	copy(stored, out)
	t.fields[keyPath] = stored
	return isKeyframe, out, nil
}

// CompressObjSeq renders seq as a numeric delta against the last objSeq
// seen from origin, and records seq as the new baseline.
func (t *Table) CompressObjSeq(origin string, seq uint64, literal string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.objSeqs[origin]
	t.objSeqs[origin] = seq
	return EncodeNumeric(int64(prev), int64(seq), literal)
}

// DecompressObjSeq is CompressObjSeq's inverse.
func (t *Table) DecompressObjSeq(origin, wireText string) (uint64, error) {
	t.mu.Lock()
	prev := t.objSeqs[origin]
	t.mu.Unlock()

	seq, wasDelta, err := DecodeNumeric(int64(prev), wireText)
	if err != nil {
		return 0, err
	}
	if !wasDelta {
		return 0, nil // caller parses the literal text itself
	}
	t.mu.Lock()
	t.objSeqs[origin] = uint64(seq)
	t.mu.Unlock()
	return uint64(seq), nil
}
