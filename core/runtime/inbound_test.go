/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package runtime

import (
	"sync"
	"testing"
	"time"

	"github.com/spiderwiz/fabric/cmn"
	"github.com/spiderwiz/fabric/core/object"
	"github.com/spiderwiz/fabric/core/wire"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	cfg := cmn.NewNode("test-node")
	reg := object.NewRegistry()
	if err := reg.Register(&object.Schema{
		Code: "Sensor",
		Fields: []object.FieldDescriptor{
			{Name: "Label", Type: object.FString},
		},
	}); err != nil {
		t.Fatalf("register schema: %v", err)
	}
	r := New(cfg, reg, nopSender{})
	r.Start()
	t.Cleanup(func() { r.Stop() })
	return r
}

func TestApplyFrameKeyframeFiresOnNewAndOnEvent(t *testing.T) {
	producer := newTestRuntime(t)
	obj, ok := producer.Tree.CreateTopLevelObject("Sensor", "s1")
	if !ok {
		t.Fatal("create failed")
	}
	obj.Set("Label", "hello")
	frame, err := wire.SerializeKeyframe(obj, "producer-uuid", 1, 0)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	receiver := newTestRuntime(t)
	var mu sync.Mutex
	var newFired, eventFired bool
	receiver.SetHooks("Sensor", Hooks{
		OnNew:   func(o *object.Object) { mu.Lock(); newFired = true; mu.Unlock() },
		OnEvent: func(o *object.Object) { mu.Lock(); eventFired = true; mu.Unlock() },
	})

	if err := receiver.ApplyFrame(frame); err != nil {
		t.Fatalf("apply: %v", err)
	}

	mu.Lock()
	gotNew, gotEvent := newFired, eventFired
	mu.Unlock()
	if !gotNew {
		t.Error("expected OnNew to fire for a previously-unseen object")
	}
	if !gotEvent {
		t.Error("expected OnEvent to fire")
	}

	got, ok := receiver.Tree.GetChild(nil, "Sensor", "s1")
	if !ok {
		t.Fatal("applied object not found in receiver's tree")
	}
	if got.Get("Label") != "hello" {
		t.Errorf("Label = %v, want hello", got.Get("Label"))
	}
	if got.Meta.Origin != "producer-uuid" || got.Meta.ObjSeq != 1 {
		t.Errorf("meta = %+v, want origin=producer-uuid objSeq=1", got.Meta)
	}
}

func TestApplyFrameRemovalFiresOnRemoval(t *testing.T) {
	producer := newTestRuntime(t)
	obj, _ := producer.Tree.CreateTopLevelObject("Sensor", "s1")
	keyframe, err := wire.SerializeKeyframe(obj, "producer-uuid", 1, 0)
	if err != nil {
		t.Fatalf("serialize keyframe: %v", err)
	}
	removal, err := wire.SerializeRemoval(obj, "producer-uuid", 2, 0)
	if err != nil {
		t.Fatalf("serialize removal: %v", err)
	}

	receiver := newTestRuntime(t)
	done := make(chan *object.Object, 1)
	receiver.SetHooks("Sensor", Hooks{
		OnRemoval: func(o *object.Object) { done <- o },
	})

	if err := receiver.ApplyFrame(keyframe); err != nil {
		t.Fatalf("apply keyframe: %v", err)
	}
	if err := receiver.ApplyFrame(removal); err != nil {
		t.Fatalf("apply removal: %v", err)
	}

	select {
	case o := <-done:
		if !o.IsRemoved() {
			t.Error("expected the hook's object to be marked removed")
		}
	case <-time.After(time.Second):
		t.Fatal("OnRemoval did not fire")
	}
}

func TestApplyFrameRenameFiresOnRenameWithOldID(t *testing.T) {
	producer := newTestRuntime(t)
	obj, _ := producer.Tree.CreateTopLevelObject("Sensor", "s1")
	keyframe, err := wire.SerializeKeyframe(obj, "producer-uuid", 1, 0)
	if err != nil {
		t.Fatalf("serialize keyframe: %v", err)
	}
	rename, err := wire.SerializeRename(obj, "s2", "producer-uuid", 2, 0)
	if err != nil {
		t.Fatalf("serialize rename: %v", err)
	}

	receiver := newTestRuntime(t)
	type renameEvent struct {
		obj   *object.Object
		oldID string
	}
	done := make(chan renameEvent, 1)
	receiver.SetHooks("Sensor", Hooks{
		OnRename: func(o *object.Object, oldID string) { done <- renameEvent{o, oldID} },
	})

	if err := receiver.ApplyFrame(keyframe); err != nil {
		t.Fatalf("apply keyframe: %v", err)
	}
	if err := receiver.ApplyFrame(rename); err != nil {
		t.Fatalf("apply rename: %v", err)
	}

	select {
	case ev := <-done:
		if ev.oldID != "s1" {
			t.Errorf("oldID = %q, want s1", ev.oldID)
		}
		if ev.obj.ID() != "s2" {
			t.Errorf("surviving instance id = %q, want s2", ev.obj.ID())
		}
	case <-time.After(time.Second):
		t.Fatal("OnRename did not fire")
	}

	if _, ok := receiver.Tree.GetChild(nil, "Sensor", "s1"); ok {
		t.Error("old id s1 should no longer resolve")
	}
	if _, ok := receiver.Tree.GetChild(nil, "Sensor", "s2"); !ok {
		t.Error("new id s2 should resolve")
	}
}

func TestRegisterFactoryRunsOnLocalCreate(t *testing.T) {
	r := newTestRuntime(t)
	r.RegisterFactory(func(o *object.Object) {
		o.Set("Label", "default")
	}, "Sensor")

	obj, ok := r.CreateObject(nil, "Sensor", "s1")
	if !ok {
		t.Fatal("create failed")
	}
	if obj.Get("Label") != "default" {
		t.Errorf("Label = %v, want default", obj.Get("Label"))
	}
}

func TestDeclareProducedConsumedRoundTrip(t *testing.T) {
	r := newTestRuntime(t)
	r.DeclareProduced("Sensor")
	r.DeclareConsumed(true, "Sensor")

	produced := r.ProducedCodes()
	if len(produced) != 1 || produced[0] != "Sensor" {
		t.Errorf("produced = %v, want [Sensor]", produced)
	}
	consumed, lossless := r.ConsumedCodes()
	if len(consumed) != 1 || consumed[0] != "Sensor" {
		t.Errorf("consumed = %v, want [Sensor]", consumed)
	}
	if !lossless["Sensor"] {
		t.Error("expected Sensor to be declared lossless")
	}
}
