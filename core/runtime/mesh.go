/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package runtime

import (
	"fmt"
	"strings"

	"github.com/spiderwiz/fabric/core/object"
	"github.com/spiderwiz/fabric/core/seq"
	"github.com/spiderwiz/fabric/core/wire"
	"github.com/spiderwiz/fabric/fabricerr"
)

// ApplyLine is the transport layer's single entry point for one inbound
// wire line on a named channel: sequencer gap-detection, delta
// decompression, local application, and mesh fan-out (spec §4.3-§4.5),
// in that order. Control-protocol lines (spec §4.4) are the caller's
// concern — ApplyLine only accepts keyframe/delta/query wire.Frame lines
// (the three single-byte frame types), so a transport implementation
// should route through core/channel.ClassifyLine first and only forward
// what isn't a control line here.
func (r *Runtime) ApplyLine(channel, line string) error {
	f, err := wire.Decode(line)
	if err != nil {
		fabricerr.Report(fabricerr.ParseError, "malformed inbound wire line", err, false)
		return err
	}

	outcome := r.seqIn.Receive(channel, f.Code, uint16(f.ObjSeq))
	switch outcome {
	case seq.Duplicate:
		return nil // boomerang/replay: drop silently (spec §4.3)
	case seq.OutOfSequence:
		return nil // dropped; the sequencer already rate-limited a ^Reset request
	case seq.ResetMarker:
		r.deltaInTable(channel, f.Code).Reset()
	}

	local := *f // ApplyFrame/applyQueryFrame mutate a decompressed copy; line/f stay verbatim for Route
	if local.Type == wire.FrameDelta {
		if err := r.decompressInbound(channel, &local); err != nil {
			fabricerr.Report(fabricerr.ParseError, "failed to decompress inbound delta frame", err, false)
			return err
		}
	}

	switch local.Type {
	case wire.FrameQuery:
		r.applyQueryFrame(&local)
	default:
		if err := r.ApplyFrame(&local); err != nil {
			return err
		}
	}

	const deployTimeUnknown = 0 // login handshake carries deploy-time, not individual object frames
	r.Hub.Route(f, line, deployTimeUnknown, channel)
	return nil
}

// decompressInbound reconstructs f's literal field body from its delta
// encoding against channel's baseline for f.Code, rewriting f to look like
// an ordinary keyframe so the rest of the pipeline never has to know the
// difference (spec §4.2's compress/decompress symmetry, testable property
// for delta round-trip).
func (r *Runtime) decompressInbound(channel string, f *wire.Frame) error {
	wireFields, err := wire.DecodeEmbedded(f.Body)
	if err != nil {
		return fmt.Errorf("runtime: decode delta body: %w", err)
	}
	schema, ok := r.Registry.Lookup(object.Code(f.Code))
	if !ok {
		return fmt.Errorf("runtime: unknown object code %q on delta frame", f.Code)
	}
	table := r.deltaInTable(channel, f.Code)
	keyPath := strings.Join(f.KeyPath, "/")
	_, out, err := table.DecompressFields(keyPath, wireFields, len(schema.Fields))
	if err != nil {
		return fmt.Errorf("runtime: decompress delta fields: %w", err)
	}
	f.Type = wire.FrameKeyframe
	f.Body = wire.EncodeEmbedded(out)
	return nil
}
