/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/valyala/fasthttp"
)

// HTTPChannel is a push-style reference Channel over fasthttp: outbound
// lines are POSTed to the peer's ingest endpoint; inbound lines arrive on
// an internal buffered queue fed by this node's own fasthttp.Server
// handler (registered once per listening HTTPServer, demultiplexed by
// peer name).
type HTTPChannel struct {
	name       string
	remoteURL  string
	client     *fasthttp.Client
	inbound    chan string
}

func NewHTTPChannel(name, remoteURL string, client *fasthttp.Client) *HTTPChannel {
	if client == nil {
		client = &fasthttp.Client{}
	}
	return &HTTPChannel{
		name:      name,
		remoteURL: remoteURL,
		client:    client,
		inbound:   make(chan string, 1024),
	}
}

func (c *HTTPChannel) Name() string { return c.name }

// Deliver is called by the HTTPServer's request handler when a line
// arrives addressed to this channel.
func (c *HTTPChannel) Deliver(line string) {
	select {
	case c.inbound <- line:
	default:
		// bounded queue full: spec §7 BufferOverflow, lossy by default for
		// a transport-level channel buffer.
	}
}

func (c *HTTPChannel) ReadLine(ctx context.Context) (string, error) {
	select {
	case line := <-c.inbound:
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *HTTPChannel) WriteLine(ctx context.Context, line string) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.remoteURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.Set("X-Fabric-Channel", c.name)
	req.SetBodyString(line)

	if err := c.client.Do(req, resp); err != nil {
		return fmt.Errorf("channel: post to %s: %w", c.remoteURL, err)
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("channel: peer %s rejected line: status %d", c.remoteURL, resp.StatusCode())
	}
	return nil
}

func (c *HTTPChannel) Close() error {
	close(c.inbound)
	return nil
}

// HTTPServer listens for inbound lines and demultiplexes them to the
// matching HTTPChannel by the X-Fabric-Channel header.
type HTTPServer struct {
	mu       sync.RWMutex
	channels map[string]*HTTPChannel
}

func NewHTTPServer() *HTTPServer { return &HTTPServer{channels: map[string]*HTTPChannel{}} }

func (s *HTTPServer) Register(c *HTTPChannel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[c.name] = c
}

func (s *HTTPServer) Unregister(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, name)
}

func (s *HTTPServer) Handler(ctx *fasthttp.RequestCtx) {
	name := string(ctx.Request.Header.Peek("X-Fabric-Channel"))
	s.mu.RLock()
	c, ok := s.channels[name]
	s.mu.RUnlock()
	if !ok {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}
	c.Deliver(string(ctx.PostBody()))
	ctx.SetStatusCode(fasthttp.StatusOK)
}

func (s *HTTPServer) ListenAndServe(addr string) error {
	return fasthttp.ListenAndServe(addr, s.Handler)
}
