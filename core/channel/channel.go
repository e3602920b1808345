// Package channel defines the transport-plug-in surface (spec §4.4):
// the Channel interface and the login handshake types. Concrete wire
// transports are out of scope beyond one reference implementation each
// over a file and over HTTP.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package channel

import "context"

// Role is a channel endpoint's declared login role (spec §4.4). Login
// refuses the handshake if both sides declare the same single role.
type Role int

const (
	RoleProducer Role = iota
	RoleConsumer
	RoleBoth
)

// CompressionMode is the per-channel negotiated compression level.
type CompressionMode int

const (
	CompressNone CompressionMode = iota
	CompressLogical
	CompressZip
	CompressFull
)

// Login is the ^L handshake payload.
type Login struct {
	Role         Role
	Name         string
	Version      string
	CoreVersion  string
	UserLabel    string
	Consumed     []string        // object-codes consumed, '+' suffix stripped
	Lossless     map[string]bool // code -> lossless for this side
	Compression  CompressionMode
}

// LoginAck is the ^LACK reply: the peer's own identity plus the
// negotiated compression mode.
type LoginAck struct {
	Login
	Accepted bool
	Reason   string
}

// Channel is the narrow transport interface the core drives: read one
// line at a time, write one line at a time, and report disconnects. Every
// concrete transport (file, TCP, HTTP long-poll, message broker) speaks
// only this surface.
type Channel interface {
	Name() string
	ReadLine(ctx context.Context) (string, error)
	WriteLine(ctx context.Context, line string) error
	Close() error
}

// Dialer opens a Channel, the plug-in point for a transport (spec's
// "channel handlers, collaborator").
type Dialer interface {
	Dial(ctx context.Context, address string) (Channel, error)
}
