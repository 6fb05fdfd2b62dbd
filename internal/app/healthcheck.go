package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// healthHandler reports liveness while a campaign is running.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Liveness probe received.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// startHealthcheckServer runs the health check HTTP server in the
// background. Long campaigns run under schedulers that probe for liveness.
func (a *App) startHealthcheckServer(port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)

	addr := fmt.Sprintf(":%d", port)
	a.httpServer = &http.Server{Addr: addr, Handler: mux}

	go func() {
		a.logger.Info("🩺 Starting health check server", "address", fmt.Sprintf("http://localhost%s/health", addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Health check server failed unexpectedly", "error", err)
		}
	}()
}

// closeHealthcheckServer shuts the health check server down gracefully.
func (a *App) closeHealthcheckServer() {
	if a.httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("Health check server shutdown failed", "error", err)
	}
}
