/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package runtime

import (
	"strings"

	"github.com/spiderwiz/fabric/cmn/nlog"
	"github.com/spiderwiz/fabric/core/delta"
	"github.com/spiderwiz/fabric/core/object"
	"github.com/spiderwiz/fabric/core/wire"
	"github.com/spiderwiz/fabric/fabricerr"
)

// Commit implements object.CommitSink: it's invoked whenever application
// code calls object.Commit(destinations...). It stamps the next outbound
// sequence number, compresses the field set against this code's delta
// baseline, and hands the encoded line to the hub for mesh fan-out (spec
// §4.2, §4.3, §4.5).
func (r *Runtime) Commit(obj *object.Object, destinations []string) {
	r.Dispatch(func() {
		f, line, err := r.serializeCommit(obj)
		if err != nil {
			fabricerr.Report(fabricerr.ParseError, "failed to serialize committed object", err, false)
			nlog.Errorf("runtime: commit %s/%s: %v", obj.Code(), obj.ID(), err)
			return
		}
		r.Hub.Publish(f, line, destinations...)
	})
}

func (r *Runtime) serializeCommit(obj *object.Object) (*wire.Frame, string, error) {
	origin := r.Config.UUID
	objSeq := uint64(r.seqOut.Next("local", string(obj.Code())))

	var (
		f   *wire.Frame
		err error
	)
	switch {
	case obj.IsRemoved():
		f, err = wire.SerializeRemoval(obj, origin, objSeq, 0)
	case obj.RenameTarget() != "":
		f, err = wire.SerializeRename(obj, obj.RenameTarget(), origin, objSeq, 0)
	default:
		f, err = wire.SerializeKeyframe(obj, origin, objSeq, 0)
		if err == nil {
			r.compressOutbound(obj, f)
		}
	}
	if err != nil {
		return nil, "", err
	}
	line, err := f.Encode()
	if err != nil {
		return nil, "", err
	}
	return f, line, nil
}

// compressOutbound rewrites f in place from a literal keyframe to a delta
// frame when this code's outbound table already has a baseline for f's key
// path (spec §4.2: "per (channel, ObjectCode)... literal the first time a
// key path is seen, a per-field delta afterward").
func (r *Runtime) compressOutbound(obj *object.Object, f *wire.Frame) {
	raw, err := wire.DecodeEmbedded(f.Body)
	if err != nil {
		return // malformed body would already have failed SerializeKeyframe; defensive only
	}
	table := r.deltaOutTable(string(obj.Code()))
	keyPath := strings.Join(f.KeyPath, "/")
	isKeyframe, out := table.CompressFields(keyPath, raw)
	if isKeyframe {
		return
	}
	f.Type = wire.FrameDelta
	f.Body = wire.EncodeEmbedded(out)
}

func (r *Runtime) deltaOutTable(code string) *delta.Table {
	r.deltaMu.Lock()
	defer r.deltaMu.Unlock()
	t, ok := r.deltaOut[code]
	if !ok {
		t = delta.NewTable()
		r.deltaOut[code] = t
	}
	return t
}

func (r *Runtime) deltaInTable(channel, code string) *delta.Table {
	key := channel + "|" + code
	r.deltaMu.Lock()
	defer r.deltaMu.Unlock()
	t, ok := r.deltaIn[key]
	if !ok {
		t = delta.NewTable()
		r.deltaIn[key] = t
	}
	return t
}
