// Package pipe implements the lossless, disk-backed, modulo-indexed
// at-least-once delivery queue that sits between a producer and one
// consumer for one object-code (spec §4.6).
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package pipe

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/karrick/godirwalk"

	"github.com/spiderwiz/fabric/cmn/fname"
	"github.com/spiderwiz/fabric/cmn/nlog"
)

const (
	DefaultBufferSize     = 1000
	DefaultBuffersPerFile = 10
	DefaultMaxFiles       = 100000
	lineMarker            = '^'
)

// Range is a half-open [From, To) skipped-ack range recorded in history.txt
// and replayed exactly once on restart (spec §4.6, testable property #6).
type Range struct{ From, To uint64 }

// Pipe is one producer -> consumer durable queue for a single object code.
// All mutating operations (Put/Get/Acknowledge) serialize on mu, matching
// the teacher's per-resource single-mutex convention.
type Pipe struct {
	dir     string
	modulus uint64

	mu            sync.Mutex
	block         []string // in-memory tail block awaiting file flush
	blockStart    uint64   // modular index of block[0]
	nextPut       uint64
	nextGet       uint64
	nextAck       uint64
	skippedRanges []Range

	bufferSize     int
	buffersPerFile int
	maxFiles       int
}

// Open loads (or initializes) the pipe rooted at dir, replaying its
// history sidecar if present (spec §4.6's crash-replay invariant).
func Open(dir string) (*Pipe, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("pipe: mkdir %s: %w", dir, err)
	}
	p := &Pipe{
		dir:            dir,
		bufferSize:     DefaultBufferSize,
		buffersPerFile: DefaultBuffersPerFile,
		maxFiles:       DefaultMaxFiles,
	}
	p.modulus = uint64(p.bufferSize) * uint64(p.buffersPerFile) * uint64(p.maxFiles)
	if err := p.loadHistory(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pipe) historyPath() string { return filepath.Join(p.dir, fname.PipeHistory) }

func (p *Pipe) loadHistory() error {
	f, err := os.Open(p.historyPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("pipe: open history: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(k) {
		case "nextPut":
			p.nextPut, _ = strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		case "nextGet":
			p.nextGet, _ = strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		case "nextAck":
			p.nextAck, _ = strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		case "skipped acks":
			p.skippedRanges = parseRanges(v)
		}
	}
	p.blockStart = p.nextPut
	return sc.Err()
}

func parseRanges(s string) []Range {
	var out []Range
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		from, to, ok := strings.Cut(part, "-")
		if !ok {
			continue
		}
		f, err1 := strconv.ParseUint(from, 10, 64)
		t, err2 := strconv.ParseUint(to, 10, 64)
		if err1 == nil && err2 == nil {
			out = append(out, Range{From: f, To: t})
		}
	}
	return out
}

func (p *Pipe) saveHistoryLocked() error {
	var b strings.Builder
	fmt.Fprintf(&b, "nextPut=%d\n", p.nextPut)
	fmt.Fprintf(&b, "nextGet=%d\n", p.nextGet)
	fmt.Fprintf(&b, "nextAck=%d\n", p.nextAck)
	ranges := make([]string, len(p.skippedRanges))
	for i, r := range p.skippedRanges {
		ranges[i] = fmt.Sprintf("%d-%d", r.From, r.To)
	}
	fmt.Fprintf(&b, "skipped acks=%s\n", strings.Join(ranges, ","))
	return os.WriteFile(p.historyPath(), []byte(b.String()), 0o644)
}

// Put synchronously appends line to the in-memory block (spec §4.6
// "put(line) synchronously appends to an in-memory block"), flushing to a
// file once the block fills.
func (p *Pipe) Put(line string) (index uint64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	index = p.nextPut
	p.block = append(p.block, line)
	p.nextPut = (p.nextPut + 1) % p.modulus
	if len(p.block) >= p.bufferSize {
		if err := p.flushBlockLocked(); err != nil {
			return index, err
		}
	}
	return index, p.saveHistoryLocked()
}

func (p *Pipe) flushBlockLocked() error {
	if len(p.block) == 0 {
		return nil
	}
	path := p.fileFor(p.blockStart)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("pipe: open %s: %w", path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	idx := p.blockStart
	for _, line := range p.block {
		fmt.Fprintf(w, "%c,%d,%s\n", lineMarker, idx, line)
		idx = (idx + 1) % p.modulus
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("pipe: flush %s: %w", path, err)
	}
	p.blockStart = idx
	p.block = p.block[:0]
	p.pruneDrainedFilesLocked()
	return nil
}

func (p *Pipe) fileFor(startIndex uint64) string {
	fileSize := uint64(p.bufferSize) * uint64(p.buffersPerFile)
	fileStart := (startIndex / fileSize) * fileSize
	return filepath.Join(p.dir, strconv.FormatUint(fileStart, 10)+".txt")
}

// Get returns the next undelivered item, if any, reading the memory block
// first and falling back to disk (spec §4.6).
func (p *Pipe) Get() (line string, ok bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nextGet == p.nextPut {
		return "", false, nil
	}
	if p.nextGet >= p.blockStart && len(p.block) > 0 {
		offset := p.nextGet - p.blockStart
		if offset < uint64(len(p.block)) {
			line = p.block[offset]
			p.nextGet = (p.nextGet + 1) % p.modulus
			return line, true, p.saveHistoryLocked()
		}
	}
	line, err = p.readFromFileLocked(p.nextGet)
	if err != nil {
		return "", false, err
	}
	p.nextGet = (p.nextGet + 1) % p.modulus
	p.pruneDrainedFilesLocked()
	return line, true, p.saveHistoryLocked()
}

func (p *Pipe) readFromFileLocked(index uint64) (string, error) {
	path := p.fileFor(index)
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("pipe: open %s for index %d: %w", path, index, err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		parts := strings.SplitN(line, ",", 3)
		if len(parts) != 3 {
			continue
		}
		idx, err := strconv.ParseUint(parts[1], 10, 64)
		if err == nil && idx == index {
			return parts[2], nil
		}
	}
	return "", fmt.Errorf("pipe: index %d not found in %s", index, path)
}

// pruneDrainedFilesLocked deletes any data file fully consumed by nextGet,
// scanning the pipe directory with godirwalk rather than os.ReadDir (spec
// §4.6: "any file already fully drained by nextGet is deleted").
func (p *Pipe) pruneDrainedFilesLocked() {
	names, err := godirwalk.ReadDirnames(p.dir, nil)
	if err != nil {
		nlog.Warningf("pipe: scan %s: %v", p.dir, err)
		return
	}
	sort.Strings(names)
	fileSize := uint64(p.bufferSize) * uint64(p.buffersPerFile)
	for _, name := range names {
		if !strings.HasSuffix(name, ".txt") || name == fname.PipeHistory {
			continue
		}
		startStr := strings.TrimSuffix(name, ".txt")
		start, err := strconv.ParseUint(startStr, 10, 64)
		if err != nil {
			continue
		}
		lastIndex := start + fileSize - 1
		if lastIndex < p.nextGet && start < p.blockStart {
			_ = os.Remove(filepath.Join(p.dir, name))
		}
	}
}

// Acknowledge advances nextAck; a gap between the previous nextAck and n
// is recorded as a skipped range queued for resend (spec §4.6).
func (p *Pipe) Acknowledge(n uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n > p.nextAck {
		p.skippedRanges = append(p.skippedRanges, Range{From: p.nextAck, To: n})
	}
	p.nextAck = n + 1
	_ = p.saveHistoryLocked()
}

// SkippedRanges returns a snapshot of the currently pending resend ranges.
func (p *Pipe) SkippedRanges() []Range {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Range, len(p.skippedRanges))
	copy(out, p.skippedRanges)
	return out
}

// ClearRange removes a fully-resent range from the sidecar.
func (p *Pipe) ClearRange(r Range) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, existing := range p.skippedRanges {
		if existing == r {
			p.skippedRanges = append(p.skippedRanges[:i], p.skippedRanges[i+1:]...)
			break
		}
	}
	_ = p.saveHistoryLocked()
}

func (p *Pipe) Stats() (nextPut, nextGet, nextAck uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextPut, p.nextGet, p.nextAck
}

// Flush forces the in-memory block to disk (called on shutdown, per
// spec §5 "shutdown flushes lossless-pipe writers... synchronously").
func (p *Pipe) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushBlockLocked()
}
