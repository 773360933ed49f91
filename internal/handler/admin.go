package handler

import (
	"net/http"
	"time"
)

// statsResponse is the admin counters document.
type statsResponse struct {
	CheckoutSessions map[string]int `json:"checkout_sessions_by_status"`
	OrdersByPayment  map[string]int `json:"orders_by_payment"`
	OrdersToday      int            `json:"orders_today"`
}

func (h *Handler) adminStats(w http.ResponseWriter, r *http.Request) {
	byStatus, byPayment, today, err := h.stats.Stats(r.Context(), time.Now())
	if err != nil {
		logError(r, "collect stats failed", err)
		respondError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	respondJSON(w, http.StatusOK, statsResponse{
		CheckoutSessions: byStatus,
		OrdersByPayment:  byPayment,
		OrdersToday:      today,
	})
}
