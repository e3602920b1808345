/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import "testing"

func TestFrameEncodeDecodeKeyframe(t *testing.T) {
	f := &Frame{
		Type:    FrameKeyframe,
		Code:    "Sensor",
		KeyPath: []string{"a", "b|c", "d=e"},
		Origin:  "node-1",
		ObjSeq:  7,
		AckSeq:  3,
		Body:    EncodeEmbedded([]string{"42", "3.5", "1"}),
	}
	line, err := f.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(line)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Code != f.Code || got.Origin != f.Origin || got.ObjSeq != f.ObjSeq || got.AckSeq != f.AckSeq || got.Body != f.Body {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, f)
	}
	if len(got.KeyPath) != len(f.KeyPath) {
		t.Fatalf("key path length mismatch: got %v, want %v", got.KeyPath, f.KeyPath)
	}
	for i := range f.KeyPath {
		if got.KeyPath[i] != f.KeyPath[i] {
			t.Fatalf("key path[%d] mismatch: got %q, want %q", i, got.KeyPath[i], f.KeyPath[i])
		}
	}
}

func TestFrameEncodeDecodeRemovalAndRename(t *testing.T) {
	removed := &Frame{Type: FrameKeyframe, Code: "Sensor", KeyPath: []string{"a"}, Origin: "n", Removed: true}
	line, _ := removed.Encode()
	got, err := Decode(line)
	if err != nil || !got.Removed {
		t.Fatalf("removal round trip failed: %+v, err=%v", got, err)
	}

	renamed := &Frame{Type: FrameKeyframe, Code: "Sensor", KeyPath: []string{"a"}, Origin: "n", RenameTo: "b"}
	line, _ = renamed.Encode()
	got, err = Decode(line)
	if err != nil || got.RenameTo != "b" {
		t.Fatalf("rename round trip failed: %+v, err=%v", got, err)
	}
}

func TestFrameDecodeRejectsUnknownType(t *testing.T) {
	if _, err := Decode("@Sensor|a|n#0#0:x"); err == nil {
		t.Fatal("expected error for unknown frame type")
	}
}
