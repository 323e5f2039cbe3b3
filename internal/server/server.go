// FilePath: internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	nuts "github.com/vaudience/go-nuts"

	"github.com/pcdvisual/telemetry-hub/api"
	"github.com/pcdvisual/telemetry-hub/api/middleware"
	"github.com/pcdvisual/telemetry-hub/internal/config"
	"github.com/pcdvisual/telemetry-hub/internal/events"
	"github.com/pcdvisual/telemetry-hub/internal/hub"
	"github.com/pcdvisual/telemetry-hub/internal/mirror"
	"github.com/pcdvisual/telemetry-hub/internal/monitoring"
	"github.com/pcdvisual/telemetry-hub/internal/mqtt"
	"github.com/pcdvisual/telemetry-hub/internal/state"
	"github.com/pcdvisual/telemetry-hub/internal/transport"
)

// Server represents our HTTP server
type Server struct {
	config     *config.Config
	srv        *http.Server
	hub        *hub.Hub
	transport  *transport.Handlers
	monitoring *monitoring.Service
	bus        *events.Bus

	redis      *redis.Client
	bridge     *mqtt.Bridge
	stopMirror context.CancelFunc
}

// New creates a new server instance. External integrations are connected
// by Start.
func New(cfg *config.Config) *Server {
	bus := events.NewBus()
	h := hub.New(hub.Config{
		Caps: state.Caps{
			Recent:  cfg.Hub.RecentCap,
			History: cfg.Hub.HistoryCap,
			Alerts:  cfg.Hub.AlertCap,
		},
		SocketHistorySlice: cfg.Hub.SocketHistorySlice,
		Commands:           cfg.Hub.Commands,
		Version:            nuts.GetVersion(),
	}, hub.WithBus(bus))

	t := transport.New(h, transport.Config{
		ReadLimit:         cfg.Hub.ReadLimit,
		WriteTimeout:      cfg.Hub.WriteTimeout,
		KeepaliveInterval: cfg.Hub.KeepaliveInterval,
		SubscriberBuffer:  cfg.Hub.SubscriberBuffer,
	})

	mon := monitoring.NewService(monitoring.Config{
		LogEvents: cfg.Monitoring.LogEvents,
	})

	router := api.NewRouter(h, t, mon, middleware.CORSConfig{AllowedOrigins: cfg.Server.AllowedOrigins})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	s := &Server{
		config:     cfg,
		srv:        srv,
		hub:        h,
		transport:  t,
		monitoring: mon,
		bus:        bus,
	}
	s.setupEventHandlers()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Hub returns the hub served by s.
func (s *Server) Hub() *hub.Hub { return s.hub }

// Start connects integrations, begins listening for requests and blocks
// until the process is signalled.
func (s *Server) Start() error {
	if err := s.startIntegrations(context.Background()); err != nil {
		return err
	}

	// Start server
	go func() {
		nuts.L.Infof("[Server] Starting server on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			nuts.L.Errorf("[Server] Error starting server: %v", err)
			os.Exit(1)
		}
	}()

	return s.waitForShutdown()
}

// waitForShutdown waits for interrupt signal and gracefully shuts down the server
func (s *Server) waitForShutdown() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	nuts.L.Infof("[Server] Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return err
	}

	nuts.L.Infof("[Server] Server shut down successfully")
	return nil
}

// Shutdown closes subscriber and device connections, stops accepting
// requests and disconnects integrations. Open streams would otherwise hold
// http.Server.Shutdown until ctx expires, so they are ended first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.transport.Close()

	var shutdownErr error
	if err := s.srv.Shutdown(ctx); err != nil {
		shutdownErr = fmt.Errorf("error shutting down server: %w", err)
	}
	if err := s.transport.Wait(ctx); err != nil {
		nuts.L.Warnf("[Server] Connections still open at shutdown: %v", err)
	}

	if s.bridge != nil {
		s.bridge.Stop()
	}
	if s.stopMirror != nil {
		s.stopMirror()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			nuts.L.Warnf("[Server] Failed to close redis client: %v", err)
		}
	}
	return shutdownErr
}

func (s *Server) startIntegrations(ctx context.Context) error {
	if rc := s.config.Redis; rc.Enabled {
		client, err := mirror.Connect(ctx, mirror.Config{
			Host:     rc.Host,
			Port:     rc.Port,
			Password: rc.Password,
			DB:       rc.DB,
		})
		if err != nil {
			return err
		}
		s.redis = client

		m := mirror.New(client, rc.Channel, rc.Buffer)
		mirrorCtx, cancel := context.WithCancel(ctx)
		s.stopMirror = cancel
		go m.Run(mirrorCtx)
		s.hub.AddSink(m)
	}

	if mc := s.config.MQTT; mc.Enabled {
		s.bridge = mqtt.NewBridge(mqtt.Config{
			Broker:      mc.Broker,
			ClientID:    mc.ClientID,
			Username:    mc.Username,
			Password:    mc.Password,
			TopicPrefix: mc.TopicPrefix,
			QoS:         byte(mc.QoS),
		}, s.hub)
		if err := s.bridge.Start(); err != nil {
			return err
		}
	}
	return nil
}

// setupEventHandlers counts every lifecycle event of the hub.
func (s *Server) setupEventHandlers() {
	for _, name := range events.All {
		err := s.bus.On(name, "monitoring", func(id string, labels map[string]string) {
			s.monitoring.RecordEvent(name, labels)
		})
		if err != nil {
			nuts.L.Errorf("[Server] Failed to subscribe monitoring: %v", err)
		}
	}

	err := s.bus.On(events.DeviceReplaced, "server", func(id string, labels map[string]string) {
		nuts.L.Warnf("[Server] Device connection %s (%s) replaced by a newer one", id, labels["role"])
	})
	if err != nil {
		nuts.L.Errorf("[Server] Failed to subscribe replacement warning: %v", err)
	}
}
