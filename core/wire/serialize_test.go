/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import (
	"testing"

	"github.com/spiderwiz/fabric/core/object"
)

func testReg(t *testing.T) *object.Registry {
	t.Helper()
	reg := object.NewRegistry()
	if err := reg.Register(&object.Schema{
		Code: "Sensor",
		Fields: []object.FieldDescriptor{
			{Name: "Name", Type: object.FString},
			{Name: "Reading", Type: object.FFloat},
			{Name: "Active", Type: object.FBool},
			{Name: "Tags", Type: object.FSet},
			{Name: "Attrs", Type: object.FMap},
		},
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	return reg
}

func TestSerializeDeserializeKeyframeRoundTrip(t *testing.T) {
	reg := testReg(t)
	schema, _ := reg.Lookup("Sensor")
	tree := object.NewTree(reg, false)
	obj, ok := tree.CreateTopLevelObject("Sensor", "s1")
	if !ok {
		t.Fatal("create failed")
	}
	obj.Set("Name", "front-door")
	obj.Set("Reading", 21.5)
	obj.Set("Active", true)
	obj.Set("Tags", []string{"a", "b;c"})
	obj.Set("Attrs", map[string]string{"zone": "north", "unit": "C"})

	frame, err := SerializeKeyframe(obj, "node-1", 1, 0)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	line, err := frame.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := Decode(line)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	gotSchema, values, err := DeserializeKeyframe(decoded, reg)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if gotSchema.Code != schema.Code {
		t.Fatalf("schema mismatch: %v", gotSchema.Code)
	}
	if values["Name"] != "front-door" {
		t.Fatalf("Name mismatch: %v", values["Name"])
	}
	if values["Reading"] != 21.5 {
		t.Fatalf("Reading mismatch: %v", values["Reading"])
	}
	if values["Active"] != true {
		t.Fatalf("Active mismatch: %v", values["Active"])
	}
	tags, ok := values["Tags"].([]string)
	if !ok || len(tags) != 2 || tags[0] != "a" || tags[1] != "b;c" {
		t.Fatalf("Tags mismatch: %v", values["Tags"])
	}
	attrs, ok := values["Attrs"].(map[string]string)
	if !ok || attrs["zone"] != "north" || attrs["unit"] != "C" {
		t.Fatalf("Attrs mismatch: %v", values["Attrs"])
	}
}

func TestSerializeRemovalAndRenameRoundTrip(t *testing.T) {
	reg := testReg(t)
	tree := object.NewTree(reg, false)
	obj, _ := tree.CreateTopLevelObject("Sensor", "s1")

	rf, err := SerializeRemoval(obj, "node-1", 2, 1)
	if err != nil {
		t.Fatalf("serialize removal: %v", err)
	}
	line, _ := rf.Encode()
	decoded, err := Decode(line)
	if err != nil || !decoded.Removed {
		t.Fatalf("removal round trip failed: %+v, err=%v", decoded, err)
	}

	nf, err := SerializeRename(obj, "s2", "node-1", 3, 1)
	if err != nil {
		t.Fatalf("serialize rename: %v", err)
	}
	line, _ = nf.Encode()
	decoded, err = Decode(line)
	if err != nil || decoded.RenameTo != "s2" {
		t.Fatalf("rename round trip failed: %+v, err=%v", decoded, err)
	}
}
