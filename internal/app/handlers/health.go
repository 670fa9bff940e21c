package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

// CachePinger - кэш чеков; nil, если redis не настроен
type CachePinger interface {
	Ping(ctx context.Context) error
}

type HealthResponse struct {
	Status       string `json:"status"`
	ReceiptCache string `json:"receipt_cache"`
}

// HealthHandler отвечает 200, пока БД доступна. Недоступный кэш чеков только отражается в ответе:
// без него чеки рендерятся заново.
func HealthHandler(log *slog.Logger, db Pinger, receiptCache CachePinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(slog.String("op", "handlers.HealthHandler"))

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			logger.Error("database ping failed", slog.Any("error", err))
			writeJSON(w, logger, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}

		resp := HealthResponse{Status: "ok", ReceiptCache: "disabled"}
		if receiptCache != nil {
			resp.ReceiptCache = "ok"
			if err := receiptCache.Ping(ctx); err != nil {
				logger.Warn("receipt cache ping failed", slog.Any("error", err))
				resp.ReceiptCache = "unavailable"
			}
		}
		writeJSON(w, logger, http.StatusOK, resp)
	}
}
