// Package cos provides low-level types and utilities shared by every core
// package: node/session identifiers, small string helpers, error wrapping.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/OneOfOne/xxhash"
	"github.com/teris-io/shortid"
)

// alphabet for generating short, URL-safe identifiers, similar in spirit to
// shortid's own default alphabet but widened to avoid '=' and '+'
const idABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

const LenShortID = 9

var sid *shortid.Shortid

func InitShortID(seed uint64) {
	sid = shortid.MustNew(4 /*worker*/, idABC, seed)
}

// GenSessionID returns a short, locally-unique id suitable for labelling a
// channel session, a lossless-pipe resend batch, or a log line.
func GenSessionID() string {
	if sid == nil {
		InitShortID(0)
	}
	return sid.MustGenerate()
}

// GenNodeUUID returns a process-lifetime-immutable 128-bit node identity,
// hex-encoded. Generated once on first start and persisted by the config
// loader; never regenerated for the life of the node.
func GenNodeUUID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failure is effectively fatal for identity; fall back
		// to a degraded but still-unique value rather than panic.
		return fmt.Sprintf("%016x%s", xxhash.ChecksumString64(GenSessionID()), GenSessionID())
	}
	return hex.EncodeToString(b[:])
}

func IsValidUUID(uuid string) bool { return len(uuid) >= LenShortID }

// HashKey returns a fast, non-cryptographic digest of a key-path string.
// Nothing in this module calls it.
func HashKey(s string) uint64 { return xxhash.ChecksumString64(s) }
