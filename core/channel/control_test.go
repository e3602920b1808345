/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package channel

import "testing"

func TestLoginRoundTrip(t *testing.T) {
	l := Login{
		Role:        RoleBoth,
		Name:        "node-a",
		Version:     "1.2.3",
		CoreVersion: "9",
		UserLabel:   "lab",
		Consumed:    []string{"Sensor", "Alert"},
		Lossless:    map[string]bool{"Alert": true},
		Compression: CompressZip,
	}
	line := EncodeLogin(l)
	kind, ok := ClassifyLine(line)
	if !ok || kind != ControlLogin {
		t.Fatalf("ClassifyLine(%q) = %v, %v", line, kind, ok)
	}
	got, err := DecodeLogin(line)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Role != l.Role || got.Name != l.Name || got.Compression != l.Compression {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
	if !got.Lossless["Alert"] || got.Lossless["Sensor"] {
		t.Fatalf("lossless flags mismatch: %+v", got.Lossless)
	}
}

func TestLoginAckRoundTrip(t *testing.T) {
	ack := LoginAck{
		Login:    Login{Role: RoleProducer, Name: "node-b"},
		Accepted: false,
		Reason:   "role conflict",
	}
	line := EncodeLoginAck(ack)
	kind, ok := ClassifyLine(line)
	if !ok || kind != ControlLoginAck {
		t.Fatalf("ClassifyLine(%q) = %v, %v", line, kind, ok)
	}
	got, err := DecodeLoginAck(line)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Accepted || got.Reason != ack.Reason || got.Name != ack.Name {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}

func TestRoleConflict(t *testing.T) {
	if !RoleConflict(RoleProducer, RoleProducer) {
		t.Error("two producers should conflict")
	}
	if RoleConflict(RoleBoth, RoleProducer) {
		t.Error("a Both endpoint should never conflict")
	}
	if RoleConflict(RoleProducer, RoleConsumer) {
		t.Error("a producer and a consumer should not conflict")
	}
}

func TestResetRoundTrip(t *testing.T) {
	r := ResetRequest{
		Codes:      []string{"Sensor", "Alert"},
		Requestor:  "node-a",
		Target:     "node-b",
		DeployTime: 1700000000,
		Seq:        42,
		AppInfo:    "fabricd/1.0",
	}
	line := EncodeReset(r)
	kind, ok := ClassifyLine(line)
	if !ok || kind != ControlReset {
		t.Fatalf("ClassifyLine(%q) = %v, %v", line, kind, ok)
	}
	got, err := DecodeReset(line)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Codes) != 2 || got.Requestor != r.Requestor || got.Seq != r.Seq || got.DeployTime != r.DeployTime {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}

func TestRemoveNodeRoundTrip(t *testing.T) {
	line := EncodeRemoveNode("node-x")
	kind, ok := ClassifyLine(line)
	if !ok || kind != ControlRemoveNode {
		t.Fatalf("ClassifyLine(%q) = %v, %v", line, kind, ok)
	}
	uuid, err := DecodeRemoveNode(line)
	if err != nil || uuid != "node-x" {
		t.Fatalf("DecodeRemoveNode = %q, %v", uuid, err)
	}
}

func TestAckRoundTrip(t *testing.T) {
	a := Ack{Code: "Sensor", AckerUUID: "node-b", DestinationUUID: "node-a", Serial: 123}
	line := EncodeAck(a)
	kind, ok := ClassifyLine(line)
	if !ok || kind != ControlAck {
		t.Fatalf("ClassifyLine(%q) = %v, %v", line, kind, ok)
	}
	got, err := DecodeAck(line)
	if err != nil || got != a {
		t.Fatalf("round trip mismatch: got %+v, err %v", got, err)
	}
}

func TestPingPongAndCompressHandshake(t *testing.T) {
	if kind, ok := ClassifyLine(EncodePing()); !ok || kind != ControlPing {
		t.Fatalf("ping misclassified: %v %v", kind, ok)
	}
	if kind, ok := ClassifyLine(EncodePong()); !ok || kind != ControlPong {
		t.Fatalf("pong misclassified: %v %v", kind, ok)
	}
	line := EncodeCompressReq(CompressFull)
	if kind, ok := ClassifyLine(line); !ok || kind != ControlCompressReq {
		t.Fatalf("compress-req misclassified: %v %v", kind, ok)
	}
	mode, err := DecodeCompressReq(line)
	if err != nil || mode != CompressFull {
		t.Fatalf("DecodeCompressReq = %v, %v", mode, err)
	}
	ackLine := EncodeCompressAck(CompressLogical)
	mode, err = DecodeCompressAck(ackLine)
	if err != nil || mode != CompressLogical {
		t.Fatalf("DecodeCompressAck = %v, %v", mode, err)
	}
}

func TestClassifyLineRejectsObjectFrames(t *testing.T) {
	if _, ok := ClassifyLine("$Sensor|s1|node-a#1#0:"); ok {
		t.Fatal("an object keyframe line must not classify as a control line")
	}
}
