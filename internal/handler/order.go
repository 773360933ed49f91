package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/ucpify/ucpify/internal/catalog"
	"github.com/ucpify/ucpify/internal/order"
)

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "order not found")
			return
		}
		logError(r, "get order failed", err)
		respondError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.List(r.Context())
	if err != nil {
		logError(r, "list orders failed", err)
		respondError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	if list == nil {
		list = []*order.Order{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"orders": list})
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items := h.catalog.Items()
	if items == nil {
		items = []catalog.Item{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": items})
}
