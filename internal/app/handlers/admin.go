package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/peckup-shop/internal/domain/models"
	"github.com/linemk/peckup-shop/internal/service"
)

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// AdminGetOrderHandler обрабатывает GET /api/admin/orders/{id}, в ответе есть данные покупателя
func AdminGetOrderHandler(log *slog.Logger, adminService service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AdminGetOrderHandler"
		logger := log.With(slog.String("op", op))

		orderID, err := orderIDParam(r)
		if err != nil {
			writeError(w, logger, http.StatusBadRequest, err.Error())
			return
		}

		order, err := adminService.GetOrder(r.Context(), orderID)
		if err != nil {
			respondError(w, logger, err, "failed to fetch order")
			return
		}
		writeJSON(w, logger, http.StatusOK, OrderEnvelope{Order: newOrderResponse(order, true)})
	}
}

// AdminUpdateStatusHandler обрабатывает PUT /api/admin/orders/{id}/status
func AdminUpdateStatusHandler(log *slog.Logger, adminService service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AdminUpdateStatusHandler"
		logger := log.With(slog.String("op", op))

		orderID, err := orderIDParam(r)
		if err != nil {
			writeError(w, logger, http.StatusBadRequest, err.Error())
			return
		}

		var req UpdateStatusRequest
		if err := decodeJSON(w, r, &req); err != nil {
			logger.Warn("invalid request: decoding error", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, "invalid request")
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Warn("invalid request: validation error", slog.Any("error", err))
			writeError(w, logger, http.StatusBadRequest, validationMessage(err))
			return
		}

		order, err := adminService.UpdateStatus(r.Context(), orderID, models.OrderStatus(req.Status))
		if err != nil {
			respondError(w, logger, err, "failed to update order status")
			return
		}
		writeJSON(w, logger, http.StatusOK, OrderEnvelope{Message: "Order status updated", Order: newOrderResponse(order, true)})
	}
}

// AdminDeleteOrderHandler обрабатывает DELETE /api/admin/orders/{id}
func AdminDeleteOrderHandler(log *slog.Logger, adminService service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AdminDeleteOrderHandler"
		logger := log.With(slog.String("op", op))

		orderID, err := orderIDParam(r)
		if err != nil {
			writeError(w, logger, http.StatusBadRequest, err.Error())
			return
		}

		if err := adminService.DeleteOrder(r.Context(), orderID); err != nil {
			respondError(w, logger, err, "failed to delete order")
			return
		}
		writeJSON(w, logger, http.StatusOK, MessageResponse{Message: "Order deleted successfully"})
	}
}

// AdminReceiptHandler обрабатывает GET /api/admin/orders/{id}/receipt для любого заказа
func AdminReceiptHandler(log *slog.Logger, receiptService service.ReceiptService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AdminReceiptHandler"
		logger := log.With(slog.String("op", op))

		orderID, err := orderIDParam(r)
		if err != nil {
			writeError(w, logger, http.StatusBadRequest, err.Error())
			return
		}

		rec, err := receiptService.AdminReceipt(r.Context(), orderID)
		if err != nil {
			respondError(w, logger, err, "Failed to generate receipt")
			return
		}
		writePDF(w, logger, rec)
	}
}

// AdminOrderStatsHandler обрабатывает GET /api/admin/orders/stats
func AdminOrderStatsHandler(log *slog.Logger, adminService service.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AdminOrderStatsHandler"
		logger := log.With(slog.String("op", op))

		stats, err := adminService.OrderStats(r.Context())
		if err != nil {
			respondError(w, logger, err, "failed to fetch order stats")
			return
		}
		if stats.StatusCounts == nil {
			stats.StatusCounts = map[models.OrderStatus]int64{}
		}
		writeJSON(w, logger, http.StatusOK, stats)
	}
}
