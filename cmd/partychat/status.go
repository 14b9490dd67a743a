package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vaitul/partychat/internal/config"
	"github.com/vaitul/partychat/internal/session"
	"github.com/vaitul/partychat/internal/transcript"
	"github.com/vaitul/partychat/internal/version"
)

// stateSource provides session snapshots.
type stateSource interface {
	State() session.State
}

// archiveStats provides transcript counters.
type archiveStats interface {
	Stats() transcript.WriterStats
}

type healthResponse struct {
	Status         string       `json:"status"`
	Session        string       `json:"session"`
	RoomID         string       `json:"room_id,omitempty"`
	RetryAttempts  int          `json:"retry_attempts"`
	ReloadRequired bool         `json:"reload_required"`
	Version        version.Info `json:"version"`
}

type sessionDebug struct {
	Status         string                  `json:"status"`
	UserID         string                  `json:"user_id,omitempty"`
	RoomID         string                  `json:"room_id,omitempty"`
	Nickname       string                  `json:"nickname,omitempty"`
	Icon           string                  `json:"icon,omitempty"`
	MessageCount   int                     `json:"message_count"`
	AnyoneTyping   bool                    `json:"anyone_typing"`
	RetryAttempts  int                     `json:"retry_attempts"`
	RetryDelay     string                  `json:"retry_delay,omitempty"`
	ReloadRequired bool                    `json:"reload_required"`
	Transcript     *transcript.WriterStats `json:"transcript,omitempty"`
}

// health classifies a snapshot. Unhealthy means only a manual reconnect can
// recover the session.
func health(st session.State) string {
	switch {
	case st.Status == session.StatusConnected:
		return "healthy"
	case st.Status == session.StatusDisconnected && st.ReloadRequired:
		return "unhealthy"
	default:
		return "degraded"
	}
}

// newStatusHandler builds the status router. archive may be nil.
func newStatusHandler(src stateSource, archive *transcript.Writer) http.Handler {
	var stats archiveStats
	if archive != nil {
		stats = archive
	}
	return statusRouter(src, stats)
}

func statusRouter(src stateSource, stats archiveStats) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		st := src.State()
		resp := healthResponse{
			Status:         health(st),
			Session:        st.Status.String(),
			RoomID:         st.RoomID,
			RetryAttempts:  st.RetryAttempts,
			ReloadRequired: st.ReloadRequired,
			Version:        version.Get(),
		}

		code := http.StatusOK
		if resp.Status == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	})

	r.Get("/debug/session", func(w http.ResponseWriter, r *http.Request) {
		st := src.State()
		resp := sessionDebug{
			Status:         st.Status.String(),
			UserID:         st.UserID,
			RoomID:         st.RoomID,
			Nickname:       st.Nickname,
			Icon:           st.Icon,
			MessageCount:   len(st.Messages),
			AnyoneTyping:   st.AnyoneTyping,
			RetryAttempts:  st.RetryAttempts,
			ReloadRequired: st.ReloadRequired,
		}
		if st.RetryDelay > 0 {
			resp.RetryDelay = st.RetryDelay.String()
		}
		if stats != nil {
			s := stats.Stats()
			resp.Transcript = &s
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusAddr(cfg config.StatusConfig) string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

// serveStatus runs the status server until ctx is done.
func serveStatus(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("status server listening", "url", fmt.Sprintf("http://%s/health", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("status server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("status server shutdown error", "error", err)
	}
	return nil
}
