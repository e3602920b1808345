/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package hub

import (
	"testing"

	"github.com/spiderwiz/fabric/core/wire"
)

type fakeSender struct {
	sent     []string
	lossless []string
}

func (f *fakeSender) SendTo(uuid, line string) error { f.sent = append(f.sent, uuid); return nil }
func (f *fakeSender) SendLossless(uuid, code, line string) error {
	f.lossless = append(f.lossless, uuid)
	return nil
}

func TestAntiBoomerangDropsSelfOrigin(t *testing.T) {
	sender := &fakeSender{}
	h := New("self-uuid", sender)
	var dispatched bool
	h.SetLocalDispatch([]string{"Sensor"}, func(string) { dispatched = true })

	h.Route(&wire.Frame{Origin: "self-uuid", Code: "Sensor", ObjSeq: 1}, "line", 0, "chan1")
	if dispatched {
		t.Fatal("a frame whose origin is self must never dispatch")
	}
	if len(sender.sent) != 0 {
		t.Fatal("a frame whose origin is self must never forward")
	}
}

func TestMonotonicCheckDropsNonNewer(t *testing.T) {
	sender := &fakeSender{}
	h := New("self-uuid", sender)
	var count int
	h.SetLocalDispatch([]string{"Sensor"}, func(string) { count++ })

	h.Route(&wire.Frame{Origin: "peer-1", Code: "Sensor", ObjSeq: 5}, "line5", 0, "chan1")
	h.Route(&wire.Frame{Origin: "peer-1", Code: "Sensor", ObjSeq: 3}, "line3", 0, "chan1")
	h.Route(&wire.Frame{Origin: "peer-1", Code: "Sensor", ObjSeq: 5}, "line5dup", 0, "chan1")
	if count != 1 {
		t.Fatalf("expected exactly one strictly-newer dispatch, got %d", count)
	}

	h.Route(&wire.Frame{Origin: "peer-1", Code: "Sensor", ObjSeq: 6}, "line6", 0, "chan1")
	if count != 2 {
		t.Fatalf("expected a newer seq to dispatch, got %d", count)
	}
}

func TestForwardSkipsOriginAndNonConsumers(t *testing.T) {
	sender := &fakeSender{}
	h := New("self-uuid", sender)
	h.SetLocalDispatch(nil, func(string) {})

	a := NewRemoteNode("node-a")
	a.Consumed["Sensor"] = true
	h.RegisterNode(a)
	b := NewRemoteNode("node-b")
	h.RegisterNode(b)
	origin := NewRemoteNode("peer-1")
	origin.Consumed["Sensor"] = true
	h.RegisterNode(origin)

	h.Route(&wire.Frame{Origin: "peer-1", Code: "Sensor", ObjSeq: 1}, "line", 0, "chan1")
	if len(sender.sent) != 1 || sender.sent[0] != "node-a" {
		t.Fatalf("expected forward only to node-a, got %v", sender.sent)
	}
}

func TestForwardRoutesLosslessRecipientsThroughLosslessSend(t *testing.T) {
	sender := &fakeSender{}
	h := New("self-uuid", sender)
	h.SetLocalDispatch(nil, func(string) {})

	a := NewRemoteNode("node-a")
	a.Consumed["Sensor"] = true
	a.Lossless["Sensor"] = true
	h.RegisterNode(a)

	h.Route(&wire.Frame{Origin: "peer-1", Code: "Sensor", ObjSeq: 1}, "line", 0, "chan1")
	if len(sender.lossless) != 1 || sender.lossless[0] != "node-a" {
		t.Fatalf("expected lossless forward to node-a, got %v", sender.lossless)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("lossless recipient should not also receive a plain send, got %v", sender.sent)
	}
}

func TestDisconnectComputesGoneNodesAndUnneededCodes(t *testing.T) {
	h := New("self-uuid", &fakeSender{})
	a := NewRemoteNode("node-a")
	a.Consumed["Sensor"] = true
	a.Channels["chan1"] = true
	h.RegisterNode(a)

	b := NewRemoteNode("node-b")
	b.Consumed["Sensor"] = true
	b.Channels["chan1"] = true
	b.Channels["chan2"] = true
	h.RegisterNode(b)

	gone, unneeded := h.Disconnect("chan1", []string{"node-a", "node-b"}, nil)
	if len(gone) != 1 || gone[0] != "node-a" {
		t.Fatalf("expected node-a fully gone (single channel), got %v", gone)
	}
	if len(unneeded) != 0 {
		t.Fatalf("Sensor is still needed by node-b via chan2, expected no unneeded codes, got %v", unneeded)
	}
}
