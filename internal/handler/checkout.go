package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/ucpify/ucpify/internal/checkout"
)

// checkoutSessionRequest is the wire shape shared by create and update. On
// update, absent fields leave the session untouched.
type checkoutSessionRequest struct {
	Items       []checkout.LineItemRequest `json:"items"`
	Buyer       *checkout.Buyer            `json:"buyer,omitempty"`
	Fulfillment *checkout.Fulfillment      `json:"fulfillment,omitempty"`
}

func (h *Handler) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req checkoutSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess, err := h.checkout.Create(r.Context(), checkout.CreateRequest{
		Items: req.Items,
		Buyer: req.Buyer,
	})
	if err != nil {
		h.respondCheckoutError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, sess)
}

func (h *Handler) getCheckoutSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.checkout.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondCheckoutError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (h *Handler) updateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req checkoutSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sess, err := h.checkout.Update(r.Context(), r.PathValue("id"), checkout.UpdateRequest{
		Buyer:       req.Buyer,
		Items:       req.Items,
		Fulfillment: req.Fulfillment,
	})
	if err != nil {
		h.respondCheckoutError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

// completeResponse pairs the final session state with the created order.
type completeResponse struct {
	Session *checkout.Session `json:"checkout_session"`
	Order   any               `json:"order"`
}

func (h *Handler) completeCheckoutSession(w http.ResponseWriter, r *http.Request) {
	sess, o, err := h.checkout.Complete(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondCheckoutError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, completeResponse{Session: sess, Order: o})
}

func (h *Handler) cancelCheckoutSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.checkout.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondCheckoutError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

// notReadyBody extends the error envelope with the blocking messages.
type notReadyBody struct {
	Code     string             `json:"code"`
	Message  string             `json:"message"`
	Status   checkout.Status    `json:"status"`
	Messages []checkout.Message `json:"messages,omitempty"`
}

func (h *Handler) respondCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *checkout.ValidationError
	if errors.As(err, &verr) {
		respondError(w, http.StatusBadRequest, "invalid_request", verr.Error())
		return
	}

	var tse *checkout.TerminalStateError
	if errors.As(err, &tse) {
		respondError(w, http.StatusConflict, "terminal_state", tse.Error())
		return
	}

	var nre *checkout.NotReadyError
	if errors.As(err, &nre) {
		respondJSON(w, http.StatusConflict, notReadyBody{
			Code:     "not_ready",
			Message:  nre.Error(),
			Status:   nre.Status,
			Messages: nre.Messages,
		})
		return
	}

	switch {
	case errors.Is(err, checkout.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "checkout session not found")
	case errors.Is(err, checkout.ErrPaymentFailed):
		respondError(w, http.StatusBadGateway, "payment_failed", "payment could not be initiated")
	default:
		logError(r, "checkout request failed", err)
		respondError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
