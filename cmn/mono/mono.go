// Package mono provides low-level monotonic time used for rate moderation,
// keepalive bookkeeping, and log rotation timestamps.
/*
 * Copyright (c) 2018-2021, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import "time"

var start = time.Now()

// NanoTime returns a monotonic nanosecond counter that is cheap to sample
// and safe to compare across goroutines; it is not wall-clock time.
func NanoTime() int64 { return time.Since(start).Nanoseconds() }

func Since(t int64) time.Duration { return time.Duration(NanoTime() - t) }
