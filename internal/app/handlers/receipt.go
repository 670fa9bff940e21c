package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/linemk/peckup-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/peckup-shop/internal/service"
)

func writePDF(w http.ResponseWriter, logger *slog.Logger, rec *service.Receipt) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+rec.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(rec.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(rec.Data); err != nil {
		logger.Error("failed to write receipt", slog.Any("error", err))
	}
}

// ReceiptHandler обрабатывает GET /api/orders/{id}/receipt, чек отдаётся только владельцу
func ReceiptHandler(log *slog.Logger, receiptService service.ReceiptService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ReceiptHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			writeError(w, logger, http.StatusUnauthorized, "unauthorized")
			return
		}
		orderID, err := orderIDParam(r)
		if err != nil {
			writeError(w, logger, http.StatusBadRequest, err.Error())
			return
		}

		rec, err := receiptService.UserReceipt(r.Context(), orderID, userID)
		if err != nil {
			respondError(w, logger, err, "Failed to generate receipt")
			return
		}
		writePDF(w, logger, rec)
	}
}
