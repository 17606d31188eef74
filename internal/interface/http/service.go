package httpservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/arkade-os/swapd/internal/config"
	"github.com/arkade-os/swapd/internal/core/domain"
	"github.com/arkade-os/swapd/internal/core/ports"
	interfaces "github.com/arkade-os/swapd/internal/interface"
	"github.com/arkade-os/swapd/internal/telemetry"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
)

const (
	serviceName     = "swapd"
	shutdownTimeout = 10 * time.Second
)

type service struct {
	version      string
	config       Config
	appConfig    *config.Config
	server       *http.Server
	metrics      *metrics
	otelShutdown func(context.Context) error
}

func NewService(
	version string, svcConfig Config, appConfig *config.Config,
) (interfaces.Service, error) {
	if err := svcConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service config: %s", err)
	}
	if err := appConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid app config: %s", err)
	}

	return &service{
		version:   version,
		config:    svcConfig,
		appConfig: appConfig,
		metrics:   newMetrics(),
	}, nil
}

func (s *service) Start() error {
	if err := s.start(); err != nil {
		return err
	}
	log.Infof("started listening at %s", s.config.address())
	return nil
}

func (s *service) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			log.Errorf("failed to shutdown http server: %s", err)
		}
		log.Info("stopped http server")
	}
	if s.otelShutdown != nil {
		if err := s.otelShutdown(context.Background()); err != nil {
			log.Errorf("failed to shutdown otel: %s", err)
		}
	}
	s.appConfig.Close()
	log.Info("shutdown service")
}

func (s *service) start() error {
	if s.appConfig.OtelCollectorEndpoint != "" {
		pushInterval := time.Duration(s.appConfig.OtelPushInterval) * time.Second
		otelShutdown, err := telemetry.InitOtelSDK(
			context.Background(), s.appConfig.OtelCollectorEndpoint,
			serviceName, s.version, pushInterval,
		)
		if err != nil {
			return err
		}
		s.otelShutdown = otelShutdown
		log.AddHook(telemetry.NewOTelHook())
	}

	appSvc, err := s.appConfig.AppService()
	if err != nil {
		return fmt.Errorf("failed to create app service: %w", err)
	}

	bus := s.appConfig.EventBus()
	for _, topic := range []ports.Topic{ports.LedgerTopic, ports.AdminTopic} {
		if err := bus.RegisterEventsHandler(topic, s.onEvent); err != nil {
			return err
		}
	}

	handler := newRouter(s.version, appSvc, s.config, s.metrics)
	s.server = &http.Server{
		Addr:              s.config.address(),
		Handler:           s.corsHandler().Handler(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server stopped unexpectedly")
		}
	}()
	return nil
}

func (s *service) onEvent(event domain.Event) {
	s.metrics.observeEvent(event)
	log.WithField("event", event.Type()).Debugf("%+v", event)
}

func (s *service) corsHandler() *cors.Cors {
	opts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", requestIdHeader},
		ExposedHeaders: []string{requestIdHeader},
	}
	if len(s.config.AllowedOrigins) > 0 {
		opts.AllowedOrigins = s.config.AllowedOrigins
	} else {
		opts.AllowedOrigins = []string{"*"}
	}
	return cors.New(opts)
}
