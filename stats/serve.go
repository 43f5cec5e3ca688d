// Package stats provides methods and functionality to register, track, log,
// and export metrics that, for the most part, include "counter" and "latency" kinds.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package stats

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/NVIDIA/hsort/cmn/nlog"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsPath = "/metrics"

type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Serve exposes the registry at http://<addr>/metrics until Shutdown.
func (p *Prom) Serve(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{Registry: p.reg}))
	s := &Server{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second},
		ln:  ln,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			nlog.Errorln("metrics server:", err)
		}
	}()
	nlog.Infoln("serving metrics at", s.URL())
	return s, nil
}

func (s *Server) URL() string { return "http://" + s.ln.Addr().String() + metricsPath }

func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }
