/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/spiderwiz/fabric/cmn"
	"github.com/spiderwiz/fabric/cmn/nlog"
	"github.com/spiderwiz/fabric/core/channel"
	"github.com/spiderwiz/fabric/core/hub"
	"github.com/spiderwiz/fabric/core/runtime"
)

// meshSender is the hub.Sender the Runtime pushes frames through; it owns
// one dialed channel.Channel per peer this node has logged in with and a
// read loop feeding every inbound line back into the Runtime (spec §4.4's
// login handshake, §4.5's channel-backed fan-out). In this reference
// transport a peer's channel.Login.Name doubles as its mesh UUID — the
// same identity cmn.ChannelSpec.Name already addresses in the config file.
type meshSender struct {
	cfg *cmn.Config
	rt  *runtime.Runtime

	httpClient *fasthttp.Client
	httpServer *channel.HTTPServer

	mu       sync.RWMutex
	channels map[string]channel.Channel // uuid -> live channel
}

// newMeshSender builds the sender half before a Runtime exists (the hub
// needs a Sender at construction time); bind attaches the Runtime once
// it's built, for the calls that need to read back from it (advertised
// codes, the reset-request callback). httpServer demultiplexes every
// inbound POST by its X-Fabric-Channel header (spec §4.4): a dialed
// channel is registered with it before login so the handshake's own
// LoginAck has somewhere to land.
func newMeshSender(cfg *cmn.Config) *meshSender {
	return &meshSender{
		cfg:        cfg,
		httpClient: &fasthttp.Client{},
		httpServer: channel.NewHTTPServer(),
		channels:   map[string]channel.Channel{},
	}
}

func (m *meshSender) bind(rt *runtime.Runtime) {
	m.rt = rt
	rt.SetResetRequester(m.requestReset)
}

// Start serves the configured listen addresses (for peers that POST lines
// addressed to one of our own channel names), then dials every configured
// producer and consumer channel, logs in, and launches its read loop. It
// does not block.
func (m *meshSender) Start(ctx context.Context) {
	for _, addr := range append(append([]string{}, m.cfg.ProducerServers...), m.cfg.ConsumerServers...) {
		go func(addr string) {
			if err := m.httpServer.ListenAndServe(addr); err != nil {
				nlog.Errorf("mesh: listener on %s stopped: %v", addr, err)
			}
		}(addr)
	}
	for _, spec := range m.cfg.Producers {
		go m.maintain(ctx, spec, channel.RoleProducer)
	}
	for _, spec := range m.cfg.Consumers {
		go m.maintain(ctx, spec, channel.RoleConsumer)
	}
}

// maintain keeps one configured channel dialed, re-dialing after
// Tunables.ReconnectSeconds on disconnect (spec §4.4's reconnection
// handling), until ctx is done.
func (m *meshSender) maintain(ctx context.Context, spec cmn.ChannelSpec, role channel.Role) {
	backoff := time.Duration(m.cfg.Tunables.ReconnectSeconds) * time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		httpCh := channel.NewHTTPChannel(spec.Name, spec.Name, m.httpClient)
		m.httpServer.Register(httpCh)

		uuid, err := m.login(ctx, httpCh, spec, role)
		if err != nil {
			m.httpServer.Unregister(spec.Name)
			httpCh.Close()
			nlog.Warningf("mesh: dial %s failed: %v", spec.Name, err)
			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
				return
			}
		}
		m.register(uuid, spec.Name, httpCh)
		m.readLoop(ctx, uuid, spec.Name, httpCh)
		m.unregister(uuid, spec.Name)
		m.httpServer.Unregister(spec.Name)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
	}
}

// login exchanges the ^L/^LACK handshake over an already-dialed, already-
// registered channel (spec §4.4): this side advertises its own consumed
// codes (the login carries no produced codes), the peer's LoginAck tells
// us its identity and accepted compression mode.
func (m *meshSender) login(ctx context.Context, ch channel.Channel, spec cmn.ChannelSpec, role channel.Role) (uuid string, err error) {
	consumed, lossless := m.rt.ConsumedCodes()
	codes := make([]string, len(consumed))
	for i, c := range consumed {
		codes[i] = string(c)
	}
	losslessStr := make(map[string]bool, len(lossless))
	for c, v := range lossless {
		losslessStr[string(c)] = v
	}

	login := channel.Login{
		Role:        role,
		Name:        m.cfg.UUID,
		Consumed:    codes,
		Lossless:    losslessStr,
		Compression: channel.CompressNone,
	}
	if err := ch.WriteLine(ctx, channel.EncodeLogin(login)); err != nil {
		return "", fmt.Errorf("send login: %w", err)
	}
	line, err := ch.ReadLine(ctx)
	if err != nil {
		return "", fmt.Errorf("read login ack: %w", err)
	}
	ack, err := channel.DecodeLoginAck(line)
	if err != nil {
		return "", fmt.Errorf("decode login ack: %w", err)
	}
	if !ack.Accepted {
		return "", fmt.Errorf("peer %s rejected login: %s", spec.Name, ack.Reason)
	}
	if channel.RoleConflict(role, ack.Role) {
		return "", fmt.Errorf("peer %s declared conflicting role", spec.Name)
	}
	return ack.Name, nil
}

func (m *meshSender) register(uuid, channelName string, ch channel.Channel) {
	node := hub.NewRemoteNode(uuid)
	node.Channels[channelName] = true
	m.rt.Hub.RegisterNode(node)

	m.mu.Lock()
	m.channels[uuid] = ch
	m.mu.Unlock()
}

func (m *meshSender) unregister(uuid, channelName string) {
	m.mu.Lock()
	delete(m.channels, uuid)
	m.mu.Unlock()
	m.rt.Hub.Disconnect(channelName, []string{uuid}, nil)
}

// readLoop feeds every inbound line to the Runtime: control-protocol lines
// are handled inline (only Ping and RemoveNode are acted on once login is
// done; other control lines, ^Reset included, are ignored), and
// everything else is a wire.Frame handed to Runtime.ApplyLine (spec §4.3-
// §4.5's combined inbound pipeline).
func (m *meshSender) readLoop(ctx context.Context, uuid, channelName string, ch channel.Channel) {
	for {
		line, err := ch.ReadLine(ctx)
		if err != nil {
			nlog.Warningf("mesh: channel %s read failed: %v", channelName, err)
			return
		}
		if kind, ok := channel.ClassifyLine(line); ok {
			m.handleControl(ch, channelName, kind, line)
			continue
		}
		if err := m.rt.ApplyLine(uuid, line); err != nil {
			nlog.Warningf("mesh: channel %s: %v", channelName, err)
		}
	}
}

func (m *meshSender) handleControl(ch channel.Channel, channelName string, kind channel.ControlKind, line string) {
	switch kind {
	case channel.ControlPing:
		_ = ch.WriteLine(context.Background(), channel.EncodePong())
	case channel.ControlRemoveNode:
		if uuid, err := channel.DecodeRemoveNode(line); err == nil {
			m.unregister(uuid, channelName)
		}
	default:
		// Reset/Ack/Pong/CompressReq/CompressAck/Login are either answered
		// at dial time or are advisory; nothing else currently reacts to
		// them inbound.
	}
}

// requestReset is installed as the Runtime's resetRequester: it puts a
// ^Reset line on the channel addressed to channel (a peer UUID in this
// transport), per spec §4.3's out-of-sequence recovery.
func (m *meshSender) requestReset(peerUUID, code string) {
	m.mu.RLock()
	ch, ok := m.channels[peerUUID]
	m.mu.RUnlock()
	if !ok {
		nlog.Warningf("mesh: cannot request reset from %s/%s: no open channel", peerUUID, code)
		return
	}
	req := channel.EncodeReset(channel.ResetRequest{
		Codes:     []string{code},
		Requestor: m.cfg.UUID,
		Target:    peerUUID,
	})
	if err := ch.WriteLine(context.Background(), req); err != nil {
		nlog.Warningf("mesh: reset request to %s failed: %v", peerUUID, err)
	}
}

func (m *meshSender) SendTo(uuid, line string) error {
	m.mu.RLock()
	ch, ok := m.channels[uuid]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("mesh: no open channel to %s", uuid)
	}
	return ch.WriteLine(context.Background(), line)
}

func (m *meshSender) SendLossless(uuid, code, line string) error {
	return m.SendTo(uuid, line)
}

var _ hub.Sender = (*meshSender)(nil)
