/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EncodeList renders a List container: [e1;e2;...]. Each element is
// escaped independently so ';' and ']' inside an element never collide
// with the container syntax.
func EncodeList(elems []string) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = Escape(e)
	}
	return string(ListOpen) + strings.Join(parts, string(ElemSep)) + string(ListClose)
}

func DecodeList(s string) ([]string, error) {
	body, err := unwrap(s, ListOpen, ListClose)
	if err != nil {
		return nil, err
	}
	if body == "" {
		return nil, nil
	}
	raw := strings.Split(body, string(ElemSep))
	out := make([]string, len(raw))
	for i, r := range raw {
		out[i] = Unescape(r)
	}
	return out, nil
}

// EncodeSet renders a Set container: <e1;e2;...>.
func EncodeSet(elems []string) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = Escape(e)
	}
	return string(SetOpen) + strings.Join(parts, string(ElemSep)) + string(SetClose)
}

func DecodeSet(s string) ([]string, error) {
	body, err := unwrap(s, SetOpen, SetClose)
	if err != nil {
		return nil, err
	}
	if body == "" {
		return nil, nil
	}
	raw := strings.Split(body, string(ElemSep))
	out := make([]string, len(raw))
	for i, r := range raw {
		out[i] = Unescape(r)
	}
	return out, nil
}

// EncodeMap renders a Map container: <k1=v1;k2=v2;...>. Key order follows
// the order of keys as given (callers sort when a stable order is needed).
func EncodeMap(keys, vals []string) string {
	parts := make([]string, len(keys))
	for i := range keys {
		parts[i] = Escape(keys[i]) + string(MapAssign) + Escape(vals[i])
	}
	return string(SetOpen) + strings.Join(parts, string(ElemSep)) + string(SetClose)
}

func DecodeMap(s string) (keys, vals []string, err error) {
	body, err := unwrap(s, SetOpen, SetClose)
	if err != nil {
		return nil, nil, err
	}
	if body == "" {
		return nil, nil, nil
	}
	for _, entry := range strings.Split(body, string(ElemSep)) {
		k, v, ok := strings.Cut(entry, string(MapAssign))
		if !ok {
			return nil, nil, fmt.Errorf("wire: malformed map entry %q", entry)
		}
		keys = append(keys, Unescape(k))
		vals = append(vals, Unescape(v))
	}
	return keys, vals, nil
}

// EncodeEmbedded renders an embedded object's already-serialized field
// values: {v1,v2,...}.
func EncodeEmbedded(fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = Escape(f)
	}
	return string(EmbeddedOpen) + strings.Join(parts, string(DelimField)) + string(EmbeddedClose)
}

func DecodeEmbedded(s string) ([]string, error) {
	body, err := unwrap(s, EmbeddedOpen, EmbeddedClose)
	if err != nil {
		return nil, err
	}
	if body == "" {
		return nil, nil
	}
	raw := strings.Split(body, string(DelimField))
	out := make([]string, len(raw))
	for i, r := range raw {
		out[i] = Unescape(r)
	}
	return out, nil
}

// EncodeGeneric renders the generic heterogeneous-object container:
// {fullyQualifiedClassName=jsonPayload}. This is the one wire shape that
// carries an open-ended, reflection-shaped payload, so it is JSON-encoded
// via json-iterator rather than field-by-field.
func EncodeGeneric(className string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("wire: marshal generic payload: %w", err)
	}
	return string(EmbeddedOpen) + Escape(className) + string(MapAssign) + Escape(string(raw)) + string(EmbeddedClose), nil
}

func DecodeGeneric(s string, out any) (className string, err error) {
	body, err := unwrap(s, EmbeddedOpen, EmbeddedClose)
	if err != nil {
		return "", err
	}
	k, v, ok := strings.Cut(body, string(MapAssign))
	if !ok {
		return "", fmt.Errorf("wire: malformed generic container %q", s)
	}
	className = Unescape(k)
	payload := Unescape(v)
	if out != nil {
		if err := json.Unmarshal([]byte(payload), out); err != nil {
			return "", fmt.Errorf("wire: unmarshal generic payload: %w", err)
		}
	}
	return className, nil
}

func unwrap(s string, open, close byte) (string, error) {
	if len(s) < 2 || s[0] != open || s[len(s)-1] != close {
		return "", fmt.Errorf("wire: expected %c...%c, got %q", open, close, s)
	}
	return s[1 : len(s)-1], nil
}
