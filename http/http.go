package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fuad-daoud/discord-archiver/logger/dlog"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counts reports archived rows per table.
type Counts func(ctx context.Context) (map[string]int64, error)

func NewRouter(counts Counts) *mux.Router {
	router := mux.NewRouter()
	router.Use(logRequest)
	router.HandleFunc("/", rootHandler).Methods(http.MethodGet)
	router.HandleFunc("/status", statusHandler(counts)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return router
}

// Serve blocks until ctx is done or the listener fails.
func Serve(ctx context.Context, port string, handler http.Handler) error {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	dlog.Info("Serving status", "port", port)
	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		dlog.Error("Could not serve on "+port, "err", err)
		return err
	}
	return nil
}

type status struct {
	Status string           `json:"status"`
	Tables map[string]int64 `json:"tables,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func statusHandler(counts Counts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := status{Status: "ok"}
		code := http.StatusOK
		if counts != nil {
			tables, err := counts(r.Context())
			if err != nil {
				body = status{Status: "degraded", Error: err.Error()}
				code = http.StatusServiceUnavailable
			}
			body.Tables = tables
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("discord archiver\n"))
}

func logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dlog.Debug("Got request", "method", r.Method, "uri", r.RequestURI)
		next.ServeHTTP(w, r)
	})
}
