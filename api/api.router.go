package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pcdvisual/telemetry-hub/api/middleware"
	"github.com/pcdvisual/telemetry-hub/api/resources"
	_ "github.com/pcdvisual/telemetry-hub/docs"
	"github.com/pcdvisual/telemetry-hub/internal/hub"
	"github.com/pcdvisual/telemetry-hub/internal/models"
	"github.com/pcdvisual/telemetry-hub/internal/monitoring"
	"github.com/pcdvisual/telemetry-hub/internal/transport"
)

type Router struct {
	router    *mux.Router
	handler   http.Handler
	transport *transport.Handlers
	resources *resources.Resources
}

func NewRouter(h *hub.Hub, t *transport.Handlers, mon *monitoring.Service, cors middleware.CORSConfig) *Router {
	r := &Router{
		router:    mux.NewRouter(),
		transport: t,
		resources: resources.NewResources(h, mon),
	}

	r.setupRoutes()
	r.handler = middleware.Chain(r.router, cors)
	return r
}

func (r *Router) setupRoutes() {
	r.router.HandleFunc("/health", r.resources.Status.HealthCheck).Methods(http.MethodGet)

	// Device and subscriber connections
	r.router.Handle("/esp32", r.transport.DeviceHandler(models.RolePai))
	r.router.Handle("/esp32-cam", r.transport.DeviceHandler(models.RoleCamera))
	r.router.Handle("/ws", r.transport.SocketHandler())

	api := r.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/status", r.resources.Status.GetStatus).Methods(http.MethodGet)
	api.HandleFunc("/metrics", r.resources.Status.Metrics).Methods(http.MethodGet)
	api.HandleFunc("/docs/doc.json", r.resources.Docs.GetDoc).Methods(http.MethodGet)
	api.Handle("/stream/events", r.transport.StreamHandler()).Methods(http.MethodGet)

	// Detections
	detections := api.PathPrefix("/detections").Subrouter()
	detections.HandleFunc("/current", r.resources.Detections.GetCurrent).Methods(http.MethodGet)
	detections.HandleFunc("/history", r.resources.Detections.GetHistory).Methods(http.MethodGet)

	// Devices
	api.HandleFunc("/esp32/command", r.resources.Devices.SendCommand).Methods(http.MethodPost)
	api.HandleFunc("/esp32-cam/send-description", r.resources.Detections.SendDescription).Methods(http.MethodPost)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}
