/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package object

import "testing"

func testRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(&Schema{Code: "Sensor", Fields: []FieldDescriptor{{Name: "Value", Type: FFloat}}})
	_ = r.Register(&Schema{Code: "Reading", ParentCode: "Sensor", Fields: []FieldDescriptor{{Name: "At", Type: FString}}})
	return r
}

func TestCreateTopLevelAndChild(t *testing.T) {
	tree := NewTree(testRegistry(), false)

	sensor, ok := tree.CreateTopLevelObject("Sensor", "s1")
	if !ok {
		t.Fatal("expected sensor creation to succeed")
	}
	if got, ok := tree.GetChild(nil, "Sensor", "s1"); !ok || got != sensor {
		t.Fatalf("GetChild did not return the created sensor: %v %v", got, ok)
	}

	reading, ok := tree.CreateChild(sensor, "Reading", "r1")
	if !ok {
		t.Fatal("expected reading creation to succeed")
	}
	if got, ok := tree.GetChild(sensor, "Reading", "r1"); !ok || got != reading {
		t.Fatal("GetChild did not return the created reading")
	}

	// wrong parent code is rejected
	if _, ok := tree.CreateChild(reading, "Reading", "r2"); ok {
		t.Fatal("expected parent-code mismatch to be rejected")
	}
}

func TestCaseInsensitiveNormalization(t *testing.T) {
	tree := NewTree(testRegistry(), false)
	_, _ = tree.CreateTopLevelObject("Sensor", "ABC")
	if _, ok := tree.GetChild(nil, "Sensor", "abc"); !ok {
		t.Fatal("case-insensitive id should normalize on lookup")
	}
}

func TestRenameObsoletesOldAndExposesNew(t *testing.T) {
	tree := NewTree(testRegistry(), false)
	sensor, _ := tree.CreateTopLevelObject("Sensor", "a")

	sentinel, ok := tree.Rename(sensor, "b")
	if !ok {
		t.Fatal("rename should succeed")
	}
	if !sentinel.IsObsolete() || sentinel.RenameTarget() != "b" {
		t.Fatal("sentinel must be obsolete and carry the rename target")
	}
	if sentinel.ID() != "a" {
		t.Fatalf("sentinel should carry the old id, got %q", sentinel.ID())
	}

	if _, ok := tree.GetChild(nil, "Sensor", "a"); ok {
		t.Fatal("old id must be unreachable after rename")
	}
	if got, ok := tree.GetChild(nil, "Sensor", "b"); !ok || got != sensor {
		t.Fatal("new id must resolve to the renamed instance")
	}
}

func TestRenameToExistingLiveSiblingFails(t *testing.T) {
	tree := NewTree(testRegistry(), false)
	a, _ := tree.CreateTopLevelObject("Sensor", "a")
	_, _ = tree.CreateTopLevelObject("Sensor", "b")

	if _, ok := tree.Rename(a, "b"); ok {
		t.Fatal("rename onto a live sibling must fail")
	}
}

func TestRemoveMarksObsoleteAndHidesFromLookupAndFilter(t *testing.T) {
	tree := NewTree(testRegistry(), false)
	sensor, _ := tree.CreateTopLevelObject("Sensor", "a")
	sensor.Remove()

	if _, ok := tree.GetChild(nil, "Sensor", "a"); ok {
		t.Fatal("removed object must not be returned by lookup")
	}
	got := tree.GetFilteredChildren(nil, Filter{Code: "Sensor"})
	if len(got) != 0 {
		t.Fatalf("removed object must be skipped by filtered traversal, got %d", len(got))
	}
}

func TestGetFilteredChildrenDepthFirst(t *testing.T) {
	tree := NewTree(testRegistry(), false)
	s1, _ := tree.CreateTopLevelObject("Sensor", "s1")
	s2, _ := tree.CreateTopLevelObject("Sensor", "s2")
	_, _ = tree.CreateChild(s1, "Reading", "r1")
	_, _ = tree.CreateChild(s2, "Reading", "r2")

	readings := tree.GetFilteredChildren(nil, Filter{Code: "Reading"})
	if len(readings) != 2 {
		t.Fatalf("expected 2 readings across both sensors, got %d", len(readings))
	}

	sensors := tree.GetFilteredChildren(nil, Filter{Code: "Sensor", Test: func(o *Object) bool {
		return o.ID() == "s1"
	}})
	if len(sensors) != 1 || sensors[0].ID() != "s1" {
		t.Fatalf("filter Test must restrict results, got %+v", sensors)
	}
}
