/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package channel

import (
	"fmt"
	"strconv"
	"strings"
)

// The control-line prefixes a Channel multiplexes alongside object frames
// (spec §4.4). Keyframe, delta and query frames are handled by
// core/wire's single-byte FrameType; these are the session-level lines
// that never carry a key path and so don't fit that grammar.
const (
	prefixLogin        = "^L"
	prefixLoginAck     = "^LACK"
	prefixReset        = "^Reset"
	prefixRemoveNode   = "^RemoveNode"
	prefixAck          = "^ACK"
	prefixPing         = "$Ping"
	prefixPong         = "$Pong"
	prefixCompressReq  = "$CompressReq"
	prefixCompressAck  = "$CompressAck"
)

func roleString(r Role) string {
	switch r {
	case RoleProducer:
		return "producer"
	case RoleConsumer:
		return "consumer"
	default:
		return "both"
	}
}

func parseRole(s string) (Role, error) {
	switch s {
	case "producer":
		return RoleProducer, nil
	case "consumer":
		return RoleConsumer, nil
	case "both":
		return RoleBoth, nil
	default:
		return 0, fmt.Errorf("channel: unknown role %q", s)
	}
}

func encodeConsumed(codes []string, lossless map[string]bool) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		if lossless[c] {
			parts[i] = c + "+"
		} else {
			parts[i] = c
		}
	}
	return strings.Join(parts, ",")
}

func decodeConsumed(s string) ([]string, map[string]bool) {
	lossless := map[string]bool{}
	if s == "" {
		return nil, lossless
	}
	parts := strings.Split(s, ",")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		if strings.HasSuffix(p, "+") {
			p = strings.TrimSuffix(p, "+")
			lossless[p] = true
		}
		codes = append(codes, p)
	}
	return codes, lossless
}

// EncodeLogin renders the ^L handshake line (spec §4.4).
func EncodeLogin(l Login) string {
	return strings.Join([]string{
		prefixLogin,
		roleString(l.Role),
		l.Name,
		l.Version,
		l.CoreVersion,
		l.UserLabel,
		encodeConsumed(l.Consumed, l.Lossless),
		strconv.Itoa(int(l.Compression)),
	}, ";")
}

// DecodeLogin parses a ^L line produced by EncodeLogin.
func DecodeLogin(line string) (Login, error) {
	fields := strings.Split(line, ";")
	if len(fields) != 8 || fields[0] != prefixLogin {
		return Login{}, fmt.Errorf("channel: malformed login line %q", line)
	}
	role, err := parseRole(fields[1])
	if err != nil {
		return Login{}, err
	}
	compression, err := strconv.Atoi(fields[7])
	if err != nil {
		return Login{}, fmt.Errorf("channel: bad compression mode in %q: %w", line, err)
	}
	codes, lossless := decodeConsumed(fields[6])
	return Login{
		Role:        role,
		Name:        fields[2],
		Version:     fields[3],
		CoreVersion: fields[4],
		UserLabel:   fields[5],
		Consumed:    codes,
		Lossless:    lossless,
		Compression: CompressionMode(compression),
	}, nil
}

// EncodeLoginAck renders the ^LACK reply line.
func EncodeLoginAck(ack LoginAck) string {
	base := EncodeLogin(ack.Login)
	base = prefixLoginAck + strings.TrimPrefix(base, prefixLogin)
	accepted := "0"
	if ack.Accepted {
		accepted = "1"
	}
	return strings.Join([]string{base, accepted, ack.Reason}, ";")
}

// DecodeLoginAck parses a ^LACK line produced by EncodeLoginAck.
func DecodeLoginAck(line string) (LoginAck, error) {
	fields := strings.SplitN(line, ";", 10)
	if len(fields) != 10 || fields[0] != prefixLoginAck {
		return LoginAck{}, fmt.Errorf("channel: malformed login-ack line %q", line)
	}
	inner := prefixLogin + ";" + strings.Join(fields[1:8], ";")
	login, err := DecodeLogin(inner)
	if err != nil {
		return LoginAck{}, err
	}
	return LoginAck{
		Login:    login,
		Accepted: fields[8] == "1",
		Reason:   fields[9],
	}, nil
}

// RoleConflict reports whether two declared roles refuse the handshake
// (spec §4.4: "refuses handshake if both sides declare the same single
// role").
func RoleConflict(a, b Role) bool {
	return a != RoleBoth && a == b
}

// ResetRequest is the ^Reset line's payload (spec §4.3/§4.4).
type ResetRequest struct {
	Codes      []string
	Requestor  string
	Target     string // empty if broadcast to every node on the channel
	DeployTime int64
	Seq        uint16
	AppInfo    string
}

func EncodeReset(r ResetRequest) string {
	return strings.Join([]string{
		prefixReset,
		strings.Join(r.Codes, ","),
		r.Requestor,
		r.Target,
		strconv.FormatInt(r.DeployTime, 10),
		strconv.Itoa(int(r.Seq)),
		r.AppInfo,
	}, ";")
}

func DecodeReset(line string) (ResetRequest, error) {
	fields := strings.SplitN(line, ";", 7)
	if len(fields) != 7 || fields[0] != prefixReset {
		return ResetRequest{}, fmt.Errorf("channel: malformed reset line %q", line)
	}
	deployTime, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return ResetRequest{}, fmt.Errorf("channel: bad deploy time in %q: %w", line, err)
	}
	seq, err := strconv.Atoi(fields[5])
	if err != nil {
		return ResetRequest{}, fmt.Errorf("channel: bad seq in %q: %w", line, err)
	}
	var codes []string
	if fields[1] != "" {
		codes = strings.Split(fields[1], ",")
	}
	return ResetRequest{
		Codes:      codes,
		Requestor:  fields[2],
		Target:     fields[3],
		DeployTime: deployTime,
		Seq:        uint16(seq),
		AppInfo:    fields[6],
	}, nil
}

// EncodeRemoveNode and DecodeRemoveNode carry the node-drop broadcast.
func EncodeRemoveNode(uuid string) string { return prefixRemoveNode + ";" + uuid }

func DecodeRemoveNode(line string) (uuid string, err error) {
	fields := strings.SplitN(line, ";", 2)
	if len(fields) != 2 || fields[0] != prefixRemoveNode {
		return "", fmt.Errorf("channel: malformed remove-node line %q", line)
	}
	return fields[1], nil
}

// Ack is the ^ACK line's payload: a lossless delivery acknowledgement
// (spec §4.4, §4.6).
type Ack struct {
	Code            string
	AckerUUID       string
	DestinationUUID string
	Serial          uint64
}

func EncodeAck(a Ack) string {
	return strings.Join([]string{
		prefixAck, a.Code, a.AckerUUID, a.DestinationUUID, strconv.FormatUint(a.Serial, 10),
	}, ",")
}

func DecodeAck(line string) (Ack, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 5 || fields[0] != prefixAck {
		return Ack{}, fmt.Errorf("channel: malformed ack line %q", line)
	}
	serial, err := strconv.ParseUint(fields[4], 10, 64)
	if err != nil {
		return Ack{}, fmt.Errorf("channel: bad serial in %q: %w", line, err)
	}
	return Ack{Code: fields[1], AckerUUID: fields[2], DestinationUUID: fields[3], Serial: serial}, nil
}

// Ping/Pong and the compression handshake are fixed, argument-less lines
// (compression mode travels on CompressReq/CompressAck instead).
func EncodePing() string { return prefixPing }
func EncodePong() string { return prefixPong }

func EncodeCompressReq(mode CompressionMode) string {
	return prefixCompressReq + ";" + strconv.Itoa(int(mode))
}

func EncodeCompressAck(mode CompressionMode) string {
	return prefixCompressAck + ";" + strconv.Itoa(int(mode))
}

func decodeCompressionLine(prefix, line string) (CompressionMode, error) {
	fields := strings.SplitN(line, ";", 2)
	if len(fields) != 2 || fields[0] != prefix {
		return 0, fmt.Errorf("channel: malformed %s line %q", prefix, line)
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("channel: bad compression mode in %q: %w", line, err)
	}
	return CompressionMode(n), nil
}

func DecodeCompressReq(line string) (CompressionMode, error) { return decodeCompressionLine(prefixCompressReq, line) }
func DecodeCompressAck(line string) (CompressionMode, error) { return decodeCompressionLine(prefixCompressAck, line) }

// ControlKind classifies an inbound line by its control-prefix, or reports
// ok == false for a keyframe/delta/query wire.Frame line (core/wire's three
// single-byte frame types), which the caller should hand to wire.Decode
// instead.
type ControlKind int

const (
	ControlLogin ControlKind = iota
	ControlLoginAck
	ControlReset
	ControlRemoveNode
	ControlAck
	ControlPing
	ControlPong
	ControlCompressReq
	ControlCompressAck
)

func ClassifyLine(line string) (kind ControlKind, ok bool) {
	switch {
	case strings.HasPrefix(line, prefixLoginAck):
		return ControlLoginAck, true
	case strings.HasPrefix(line, prefixLogin):
		return ControlLogin, true
	case strings.HasPrefix(line, prefixReset):
		return ControlReset, true
	case strings.HasPrefix(line, prefixRemoveNode):
		return ControlRemoveNode, true
	case strings.HasPrefix(line, prefixAck):
		return ControlAck, true
	case line == prefixPing:
		return ControlPing, true
	case line == prefixPong:
		return ControlPong, true
	case strings.HasPrefix(line, prefixCompressReq):
		return ControlCompressReq, true
	case strings.HasPrefix(line, prefixCompressAck):
		return ControlCompressAck, true
	default:
		return 0, false
	}
}
