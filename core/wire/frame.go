/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// FrameType is the leading wire-line character (spec §4.2): it tells a
// receiver, before it parses anything else, which of the three frame
// families the line belongs to.
type FrameType byte

const (
	// FrameKeyframe carries a full field set: every declared field of the
	// object, independent of any prior state (the "$" frames).
	FrameKeyframe FrameType = '$'
	// FrameDelta carries only the fields that changed since the last
	// keyframe or delta for this (channel, code) pair (the "~" frames).
	FrameDelta FrameType = '~'
	// FrameQuery carries a query request or reply line (the "?" frames);
	// its Body is an escaped query/reply payload rather than field values,
	// and ObjSeq carries the queryID rather than an object sequence number.
	FrameQuery FrameType = '?'
)

// Session control lines (spec §4.4's ^L/^LACK/^Reset/^RemoveNode/^ACK and
// $Ping/$Pong/$CompressReq/$CompressAck) do not fit this single-byte-prefix,
// three-family grammar — they carry no code/keyPath/objSeq header at all —
// so they are classified and encoded separately by core/channel.ClassifyLine
// rather than as a fourth FrameType here.
func (t FrameType) Valid() bool {
	switch t {
	case FrameKeyframe, FrameDelta, FrameQuery:
		return true
	default:
		return false
	}
}

// Frame is one wire line, header plus body, independent of how the body
// was produced (full keyframe vs. delta vs. query payload).
type Frame struct {
	Type    FrameType
	Code    string
	KeyPath []string // ancestor ids root-down, including this object's own id
	Origin  string    // producing node's UUID
	ObjSeq  uint64    // per (origin, code) object sequence number
	AckSeq  uint64    // last objSeq this sender has seen acked, 0 if none

	Removed  bool   // object was removed; Body/RenameTo are meaningless
	RenameTo string // non-empty iff this frame is a rename sentinel

	Body string // pre-encoded field body (EncodeEmbedded of field values), or "" for Removed/RenameTo frames
}

// Encode renders the frame header and body onto one wire line:
//
//	<type><code>|<id>|<id>|...|<origin>#<objSeq>#<ackSeq>:<body>
//
// A removed object's body is the empty marker; a rename sentinel's body is
// Tilde followed by the escaped new id.
func (f *Frame) Encode() (string, error) {
	if !f.Type.Valid() {
		return "", fmt.Errorf("wire: invalid frame type %q", byte(f.Type))
	}
	var b strings.Builder
	b.WriteByte(byte(f.Type))
	b.WriteString(Escape(f.Code))
	for _, id := range f.KeyPath {
		b.WriteByte(DelimKey)
		b.WriteString(Escape(id))
	}
	b.WriteByte(DelimKey)
	b.WriteString(Escape(f.Origin))
	b.WriteByte(Hash)
	b.WriteString(strconv.FormatUint(f.ObjSeq, 10))
	b.WriteByte(Hash)
	b.WriteString(strconv.FormatUint(f.AckSeq, 10))
	b.WriteByte(Colon)

	switch {
	case f.Removed:
		b.WriteByte(EmptyMarker)
	case f.RenameTo != "":
		b.WriteByte(Tilde)
		b.WriteString(Escape(f.RenameTo))
	default:
		b.WriteString(f.Body)
	}
	return b.String(), nil
}

// Decode parses a wire line produced by Encode back into a Frame.
func Decode(line string) (*Frame, error) {
	if line == "" {
		return nil, fmt.Errorf("wire: empty frame line")
	}
	f := &Frame{Type: FrameType(line[0])}
	if !f.Type.Valid() {
		return nil, fmt.Errorf("wire: unknown frame type %q", line[0])
	}
	rest := line[1:]
	headerEnd := strings.IndexByte(rest, Colon)
	if headerEnd < 0 {
		return nil, fmt.Errorf("wire: missing header/body separator in %q", line)
	}
	header, body := rest[:headerEnd], rest[headerEnd+1:]

	fields := strings.Split(header, string(DelimKey))
	if len(fields) < 2 {
		return nil, fmt.Errorf("wire: malformed frame header %q", header)
	}
	f.Code = Unescape(fields[0])
	seqPart := fields[len(fields)-1]
	for _, id := range fields[1 : len(fields)-1] {
		f.KeyPath = append(f.KeyPath, Unescape(id))
	}

	originAndSeq := strings.Split(seqPart, string(Hash))
	if len(originAndSeq) != 3 {
		return nil, fmt.Errorf("wire: malformed sequence trailer %q", seqPart)
	}
	f.Origin = Unescape(originAndSeq[0])
	objSeq, err := strconv.ParseUint(originAndSeq[1], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("wire: bad objSeq in %q: %w", seqPart, err)
	}
	ackSeq, err := strconv.ParseUint(originAndSeq[2], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("wire: bad ackSeq in %q: %w", seqPart, err)
	}
	f.ObjSeq, f.AckSeq = objSeq, ackSeq

	// Removed/RenameTo are object-frame sentinels (spec §4.1): a query's
	// escaped payload could otherwise coincidentally collide with either
	// and be misparsed, so only keyframe/delta bodies are sniffed.
	switch {
	case f.Type == FrameQuery:
		f.Body = body
	case body == string(EmptyMarker):
		f.Removed = true
	case len(body) > 0 && body[0] == Tilde:
		f.RenameTo = Unescape(body[1:])
	default:
		f.Body = body
	}
	return f, nil
}
