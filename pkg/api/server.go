// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package api is the thin seam between the wire protocol and the
// handlers: it classifies requests into actions, builds the per-request
// metadata bundle, invokes the matching handler and encodes typed results
// as S3 XML. Signature cryptography and chunked-transfer decoding belong
// to the wire-protocol collaborator and are not implemented here.
package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quarrylabs/quarry/pkg/auth"
	"github.com/quarrylabs/quarry/pkg/handler"
	"github.com/quarrylabs/quarry/pkg/iam"
	"github.com/quarrylabs/quarry/pkg/metadata/registry"
)

// Server dispatches parsed S3 requests to the category handlers.
type Server struct {
	engine  *auth.Engine
	service *handler.ServiceHandler
	bucket  *handler.BucketHandler
	object  *handler.ObjectHandler

	metricsRegistry        *prometheus.Registry
	metricsRequest         *prometheus.CounterVec
	metricsRequestDuration *prometheus.HistogramVec
}

// Config wires the server to its collaborators.
type Config struct {
	Engine   *auth.Engine
	Registry *registry.Registry
	Users    iam.Store
	TempDir  string
}

func NewServer(cfg Config) *Server {
	s := &Server{
		engine:          cfg.Engine,
		service:         handler.NewServiceHandler(cfg.Engine, cfg.Registry),
		bucket:          handler.NewBucketHandler(cfg.Engine, cfg.Registry, cfg.Users),
		object:          handler.NewObjectHandler(cfg.Engine, cfg.Registry, cfg.Users, cfg.TempDir),
		metricsRegistry: prometheus.NewRegistry(),
		metricsRequest: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "s3api_requests_counter",
			Help: "Number of S3 API requests received",
		}, []string{"action", "status_code"}),
		metricsRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "s3api_request_duration_seconds",
			Help:    "Duration of S3 API requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"action", "status_code"}),
	}
	s.metricsRegistry.MustRegister(s.metricsRequest, s.metricsRequestDuration)
	return s
}

// MetricsHandler serves the prometheus scrape endpoint.
func (s *Server) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.metricsRegistry, promhttp.HandlerOpts{})
}
