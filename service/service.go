package service

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/ethereum/go-ethereum/log"

	"github.com/dfe-analytical-services/robot-rerun/metrics"
)

const (
	HealthzHost = "0.0.0.0"
	HealthzPort = "8080"

	MetricsHost = "0.0.0.0"
	MetricsPort = "7300"
)

// Service runs the healthz and metrics servers alongside a pipeline run
type Service struct {
	Healthz *HealthzServer
	Metrics *MetricsServer

	healthzAddr string
	metricsAddr string
}

// New creates a Service listening on the default addresses
func New() *Service {
	return NewWithAddrs(net.JoinHostPort(HealthzHost, HealthzPort), net.JoinHostPort(MetricsHost, MetricsPort))
}

// NewWithAddrs creates a Service listening on the given addresses
func NewWithAddrs(healthzAddr, metricsAddr string) *Service {
	return &Service{
		Healthz:     &HealthzServer{},
		Metrics:     &MetricsServer{},
		healthzAddr: healthzAddr,
		metricsAddr: metricsAddr,
	}
}

func (s *Service) Start(ctx context.Context) {
	log.Info("service starting")

	go func() {
		log.Info("starting healthz server", "addr", s.healthzAddr)
		if err := s.Healthz.Start(ctx, s.healthzAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("error starting healthz server", "err", err)
			metrics.RecordErrorDetails("error starting healthz server", err)
		}
	}()

	go func() {
		log.Info("starting metrics server", "addr", s.metricsAddr)
		if err := s.Metrics.Start(ctx, s.metricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("error starting metrics server", "err", err)
			metrics.RecordErrorDetails("error starting metrics server", err)
		}
	}()

	log.Info("service started")
}

func (s *Service) Shutdown() {
	log.Info("service shutting down")

	_ = s.Healthz.Shutdown()
	log.Info("healthz stopped")

	_ = s.Metrics.Shutdown()
	log.Info("metrics stopped")

	log.Info("service stopped")
}
