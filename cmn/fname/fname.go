// Package fname contains well-known filenames for persisted core state.
/*
 * Copyright (c) 2018-2022, NVIDIA CORPORATION. All rights reserved.
 */
package fname

const (
	// main config: UTF-8 key=value pairs, semicolon-delimited sub-parameters
	Config = ".fabric.conf"

	// one line per known peer UUID
	PeerHistory = ".fabric.peers"

	// lossless-pipe sidecar, one per (producedObjectCode, consumerUUID) directory
	PipeHistory = "history.txt"
)
