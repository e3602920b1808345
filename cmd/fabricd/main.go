// Command fabricd is the reference fabric node: it loads a node
// configuration, wires a transport, starts the Runtime, and serves a
// Prometheus /metrics endpoint until signaled to stop.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/spiderwiz/fabric/cmn"
	"github.com/spiderwiz/fabric/cmn/cos"
	"github.com/spiderwiz/fabric/cmn/fname"
	"github.com/spiderwiz/fabric/cmn/nlog"
	"github.com/spiderwiz/fabric/core/object"
	"github.com/spiderwiz/fabric/core/runtime"
	"github.com/spiderwiz/fabric/hk"
)

var (
	build     string
	buildtime string

	configDir   string
	metricsAddr string
)

func init() {
	flag.StringVar(&configDir, "config", "", "directory holding "+fname.Config)
	flag.StringVar(&metricsAddr, "metrics", "", "address to serve /metrics on, empty to disable")
}

func main() {
	if len(os.Args) == 2 && os.Args[1] == "version" {
		printVer()
		os.Exit(0)
	}
	if len(os.Args) == 2 && strings.Contains(os.Args[1], "help") {
		printVer()
		flag.PrintDefaults()
		os.Exit(0)
	}
	flag.Parse()

	if configDir == "" {
		configDir = os.Getenv("FABRIC_CONF_DIR")
	}
	if configDir == "" {
		cos.ExitLogf(nlog.Errorf, nlog.Flush, "missing configuration directory (use -config or FABRIC_CONF_DIR)")
	}

	cfg, err := cmn.Load(filepath.Join(configDir, fname.Config))
	if err != nil {
		cos.ExitLogf(nlog.Errorf, nlog.Flush, "failed to load configuration from %q: %v", configDir, err)
	}

	nlog.SetLogDirRole(configDir, "fabricd")
	nlog.SetTitle(cfg.Name)
	nlog.Infof("fabricd %s (build %s), node %s/%s", version(), buildtime, cfg.Name, cfg.UUID)

	sender := newMeshSender(cfg)
	reg := object.NewRegistry()
	r := runtime.New(cfg, reg, sender)
	sender.bind(r)
	r.Start()
	go hk.DefaultHK.Run()

	meshCtx, stopMesh := context.WithCancel(context.Background())
	sender.Start(meshCtx)

	installSignalHandler(r, stopMesh)

	if metricsAddr != "" {
		go serveMetrics(metricsAddr)
	}

	select {}
}

func serveMetrics(addr string) {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	nlog.Infof("serving metrics on %s", addr)
	if err := fasthttp.ListenAndServe(addr, handler); err != nil {
		nlog.Errorf("metrics server stopped: %v", err)
	}
}

func installSignalHandler(r *runtime.Runtime, stopMesh context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		nlog.Infof("shutting down")
		stopMesh()
		if err := r.Stop(); err != nil {
			nlog.Errorf("runtime stop: %v", err)
		}
		nlog.Flush(true)
		os.Exit(0)
	}()
}

func version() string {
	if build == "" {
		return "dev"
	}
	return build
}

func printVer() {
	fmt.Printf("fabricd version %s (build %s)\n", version(), buildtime)
}
