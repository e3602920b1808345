/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spiderwiz/fabric/core/object"
)

// GenericValue is the payload carried by an FGeneric field: an
// open-ended, heterogeneous object identified by its fully qualified
// class name (spec §4.2's "generic container").
type GenericValue struct {
	ClassName string
	Payload   any
}

// encodeValue renders one field's runtime value into its wire-container
// text, dispatching on the schema's declared FieldType (the registration-
// based replacement for reflective type inspection).
func encodeValue(ft object.FieldType, v any) (string, error) {
	if v == nil {
		return string(NullMarker), nil
	}
	switch ft {
	case object.FString:
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("wire: field expects string, got %T", v)
		}
		return Escape(s), nil
	case object.FInt:
		switch n := v.(type) {
		case int64:
			return strconv.FormatInt(n, 10), nil
		case int:
			return strconv.Itoa(n), nil
		default:
			return "", fmt.Errorf("wire: field expects int, got %T", v)
		}
	case object.FFloat:
		f, ok := v.(float64)
		if !ok {
			return "", fmt.Errorf("wire: field expects float64, got %T", v)
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	case object.FBool:
		b, ok := v.(bool)
		if !ok {
			return "", fmt.Errorf("wire: field expects bool, got %T", v)
		}
		if b {
			return "1", nil
		}
		return "0", nil
	case object.FList:
		elems, ok := v.([]string)
		if !ok {
			return "", fmt.Errorf("wire: FList expects []string, got %T", v)
		}
		return EncodeList(elems), nil
	case object.FSet:
		elems, ok := v.([]string)
		if !ok {
			return "", fmt.Errorf("wire: FSet expects []string, got %T", v)
		}
		return EncodeSet(elems), nil
	case object.FMap:
		m, ok := v.(map[string]string)
		if !ok {
			return "", fmt.Errorf("wire: FMap expects map[string]string, got %T", v)
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		vals := make([]string, len(keys))
		for i, k := range keys {
			vals[i] = m[k]
		}
		return EncodeMap(keys, vals), nil
	case object.FEmbedded:
		elems, ok := v.([]string)
		if !ok {
			return "", fmt.Errorf("wire: FEmbedded expects []string, got %T", v)
		}
		return EncodeEmbedded(elems), nil
	case object.FGeneric:
		gv, ok := v.(GenericValue)
		if !ok {
			return "", fmt.Errorf("wire: FGeneric expects GenericValue, got %T", v)
		}
		return EncodeGeneric(gv.ClassName, gv.Payload)
	default:
		return "", fmt.Errorf("wire: unknown field type %v", ft)
	}
}

func decodeValue(ft object.FieldType, s string) (any, error) {
	if s == string(NullMarker) {
		return nil, nil
	}
	switch ft {
	case object.FString:
		return Unescape(s), nil
	case object.FInt:
		n, err := strconv.ParseInt(s, 10, 64)
		return n, err
	case object.FFloat:
		f, err := strconv.ParseFloat(s, 64)
		return f, err
	case object.FBool:
		return s == "1", nil
	case object.FList:
		return DecodeList(s)
	case object.FSet:
		return DecodeSet(s)
	case object.FMap:
		keys, vals, err := DecodeMap(s)
		if err != nil {
			return nil, err
		}
		m := make(map[string]string, len(keys))
		for i, k := range keys {
			m[k] = vals[i]
		}
		return m, nil
	case object.FEmbedded:
		return DecodeEmbedded(s)
	case object.FGeneric:
		var payload map[string]any
		className, err := DecodeGeneric(s, &payload)
		if err != nil {
			return nil, err
		}
		return GenericValue{ClassName: className, Payload: payload}, nil
	default:
		return nil, fmt.Errorf("wire: unknown field type %v", ft)
	}
}

// SerializeKeyframe renders every declared field of obj, in schema
// declaration order, as a keyframe Frame body (spec §4.2, §4.3 "initial
// keyframe"). Caller supplies origin/objSeq/ackSeq, which are sequencer-
// owned and not part of the object itself.
func SerializeKeyframe(obj *object.Object, origin string, objSeq, ackSeq uint64) (*Frame, error) {
	f, err := header(obj, FrameKeyframe, origin, objSeq, ackSeq)
	if err != nil {
		return nil, err
	}
	values := obj.Snapshot()
	body := make([]string, len(obj.Schema.Fields))
	for i, fd := range obj.Schema.Fields {
		enc, err := encodeValue(fd.Type, values[fd.Name])
		if err != nil {
			return nil, fmt.Errorf("wire: field %q: %w", fd.Name, err)
		}
		body[i] = enc
	}
	f.Body = EncodeEmbedded(body)
	return f, nil
}

// SerializeRemoval and SerializeRename render the two non-keyframe,
// non-delta object lifecycle transitions (spec §4.1).
func SerializeRemoval(obj *object.Object, origin string, objSeq, ackSeq uint64) (*Frame, error) {
	f, err := header(obj, FrameKeyframe, origin, objSeq, ackSeq)
	if err != nil {
		return nil, err
	}
	f.Removed = true
	return f, nil
}

func SerializeRename(obj *object.Object, newID, origin string, objSeq, ackSeq uint64) (*Frame, error) {
	f, err := header(obj, FrameKeyframe, origin, objSeq, ackSeq)
	if err != nil {
		return nil, err
	}
	f.RenameTo = newID
	return f, nil
}

func header(obj *object.Object, t FrameType, origin string, objSeq, ackSeq uint64) (*Frame, error) {
	if obj == nil {
		return nil, fmt.Errorf("wire: cannot serialize a nil object")
	}
	return &Frame{
		Type:    t,
		Code:    string(obj.Code()),
		KeyPath: obj.KeyPath(),
		Origin:  origin,
		ObjSeq:  objSeq,
		AckSeq:  ackSeq,
	}, nil
}

// DeserializeKeyframe reconstructs an object's field-value snapshot from a
// keyframe Frame's body, using reg to resolve the declared schema (spec
// testable property #2: deserialize(serialize(o)) == o structurally).
func DeserializeKeyframe(f *Frame, reg *object.Registry) (schema *object.Schema, values map[string]any, err error) {
	schema, ok := reg.Lookup(object.Code(f.Code))
	if !ok {
		return nil, nil, fmt.Errorf("wire: unknown object code %q", f.Code)
	}
	raw, err := DecodeEmbedded(f.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: decode keyframe body: %w", err)
	}
	if len(raw) != len(schema.Fields) {
		return nil, nil, fmt.Errorf("wire: keyframe for %q has %d fields, schema declares %d", f.Code, len(raw), len(schema.Fields))
	}
	values = make(map[string]any, len(raw))
	for i, fd := range schema.Fields {
		v, err := decodeValue(fd.Type, raw[i])
		if err != nil {
			return nil, nil, fmt.Errorf("wire: field %q: %w", fd.Name, err)
		}
		values[fd.Name] = v
	}
	return schema, values, nil
}
