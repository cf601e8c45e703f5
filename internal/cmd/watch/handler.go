package watch

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/otterscale/otterscale-watch/internal/app"
)

type Handler struct {
	service *app.WatchService
}

func NewHandler(service *app.WatchService) *Handler {
	return &Handler{
		service: service,
	}
}

// Mount registers the metrics, status and health endpoints.
func (h *Handler) Mount(mux *http.ServeMux) error {
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/status", h.service.StatusHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return nil
}
