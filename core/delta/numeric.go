// Package delta implements the object-level delta compression half of the
// codec (spec §4.2): numeric, string and collection field deltas, plus the
// per-(channel, ObjectCode) keyframe table that delta frames are computed
// against. Escaping, containers and frame assembly live in core/wire.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package delta

import "strconv"

const numericDeltaPrefix = '#'

// EncodeNumeric renders cur as a signed diff against prev when that is
// shorter than the literal value, per spec §4.2 ("numeric values: #<signed-
// diff> when it shortens the output and exactly round-trips"). The caller
// supplies the literal encoding of cur so the two can be compared fairly.
func EncodeNumeric(prev, cur int64, literal string) string {
	diff := cur - prev
	encoded := string(numericDeltaPrefix) + strconv.FormatInt(diff, 10)
	if len(encoded) < len(literal) {
		return encoded
	}
	return literal
}

// DecodeNumeric is EncodeNumeric's inverse: given prev and a field's wire
// text, it returns the reconstructed value and whether the text was in
// delta form (false means the caller must parse it as a literal itself).
func DecodeNumeric(prev int64, s string) (value int64, wasDelta bool, err error) {
	if s == "" || s[0] != numericDeltaPrefix {
		return 0, false, nil
	}
	diff, err := strconv.ParseInt(s[1:], 10, 64)
	if err != nil {
		return 0, true, err
	}
	return prev + diff, true, nil
}
