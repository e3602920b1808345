// Package atomic provides typed wrappers over sync/atomic, matching the
// call sites (atomic.Int64, atomic.Uint32, atomic.Bool, ...) used throughout
// the core for lock-free counters and flags.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package atomic

import "sync/atomic"

type Int64 struct{ v atomic.Int64 }

func (i *Int64) Load() int64        { return i.v.Load() }
func (i *Int64) Store(val int64)    { i.v.Store(val) }
func (i *Int64) Add(delta int64) int64 { return i.v.Add(delta) }
func (i *Int64) CAS(old, new int64) bool { return i.v.CompareAndSwap(old, new) }

type Uint64 struct{ v atomic.Uint64 }

func (i *Uint64) Load() uint64           { return i.v.Load() }
func (i *Uint64) Store(val uint64)       { i.v.Store(val) }
func (i *Uint64) Add(delta uint64) uint64 { return i.v.Add(delta) }
func (i *Uint64) CAS(old, new uint64) bool { return i.v.CompareAndSwap(old, new) }

type Uint32 struct{ v atomic.Uint32 }

func (i *Uint32) Load() uint32            { return i.v.Load() }
func (i *Uint32) Store(val uint32)        { i.v.Store(val) }
func (i *Uint32) Add(delta uint32) uint32 { return i.v.Add(delta) }
func (i *Uint32) CAS(old, new uint32) bool { return i.v.CompareAndSwap(old, new) }

type Bool struct{ v atomic.Bool }

func (b *Bool) Load() bool     { return b.v.Load() }
func (b *Bool) Store(val bool) { b.v.Store(val) }
func (b *Bool) CAS(old, new bool) bool { return b.v.CompareAndSwap(old, new) }

type Int32 struct{ v atomic.Int32 }

func (i *Int32) Load() int32            { return i.v.Load() }
func (i *Int32) Store(val int32)        { i.v.Store(val) }
func (i *Int32) Add(delta int32) int32  { return i.v.Add(delta) }
