/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package delta

import "github.com/spiderwiz/fabric/core/wire"

// removedMarker/insertedNullMarker are the two map-entry sentinels from
// spec §4.2: "removed map entries: key=~; inserted null values: key=*".
const (
	removedMarker      = string(wire.Tilde)
	insertedNullMarker = string(wire.NullMarker)
)

// DeltaList renders cur as an element-wise delta against prev: each
// position present in both is string-delta'd; positions only in cur are
// literal. A cur shorter than prev naturally drops the trailing entries
// (spec's "trailing '~' sequences are trimmed" collapses, for this
// encoding, to simply not emitting them).
func DeltaList(prev, cur []string) []string {
	out := make([]string, len(cur))
	for i := range cur {
		if i < len(prev) {
			out[i] = EncodeString(prev[i], cur[i])
		} else {
			out[i] = wire.Escape(cur[i])
		}
	}
	return out
}

// UndoList is DeltaList's inverse.
func UndoList(prev []string, ops []string) ([]string, error) {
	out := make([]string, len(ops))
	for i, op := range ops {
		if i < len(prev) {
			v, err := DecodeString(prev[i], op)
			if err != nil {
				return nil, err
			}
			out[i] = v
		} else {
			out[i] = wire.Unescape(op)
		}
	}
	return out, nil
}

// DeltaSet renders cur as a delta against prev: elements common to both
// are dropped (the receiver already has them from prev); elements only in
// cur are emitted literally; elements only in prev are emitted with the
// removed marker so the receiver retracts them.
func DeltaSet(prev, cur []string) []string {
	prevSet := toSet(prev)
	curSet := toSet(cur)
	var out []string
	for _, e := range cur {
		if !prevSet[e] {
			out = append(out, wire.Escape(e))
		}
	}
	for _, e := range prev {
		if !curSet[e] {
			out = append(out, wire.Escape(e)+removedMarker)
		}
	}
	return out
}

// UndoSet is DeltaSet's inverse.
func UndoSet(prev []string, ops []string) []string {
	result := toSet(prev)
	for _, op := range ops {
		if len(op) > 0 && op[len(op)-1] == wire.Tilde {
			delete(result, wire.Unescape(op[:len(op)-1]))
			continue
		}
		result[wire.Unescape(op)] = true
	}
	out := make([]string, 0, len(result))
	for e := range result {
		out = append(out, e)
	}
	return out
}

func toSet(elems []string) map[string]bool {
	m := make(map[string]bool, len(elems))
	for _, e := range elems {
		m[e] = true
	}
	return m
}

// DeltaMap renders cur as a delta against prev: changed or new keys carry
// their (possibly string-delta'd) value; keys removed from prev carry the
// removed marker. Values are plain strings, so DeltaMap never emits the
// null marker: a value of "*" is escaped like any other text. UndoMap
// still accepts a bare null marker and reads it as an empty value.
func DeltaMap(prev, cur map[string]string) (keys, vals []string) {
	for k, v := range cur {
		if pv, ok := prev[k]; ok {
			if pv == v {
				continue
			}
			keys = append(keys, k)
			vals = append(vals, EncodeString(pv, v))
		} else {
			keys = append(keys, k)
			vals = append(vals, wire.Escape(v))
		}
	}
	for k := range prev {
		if _, ok := cur[k]; !ok {
			keys = append(keys, k)
			vals = append(vals, removedMarker)
		}
	}
	return keys, vals
}

// UndoMap applies a DeltaMap-produced (keys, vals) op list onto prev,
// returning the reconstructed map.
func UndoMap(prev map[string]string, keys, vals []string) (map[string]string, error) {
	out := make(map[string]string, len(prev))
	for k, v := range prev {
		out[k] = v
	}
	for i, k := range keys {
		switch vals[i] {
		case removedMarker:
			delete(out, k)
		case insertedNullMarker:
			out[k] = ""
		default:
			pv := out[k]
			v, err := DecodeString(pv, vals[i])
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
	}
	return out, nil
}
