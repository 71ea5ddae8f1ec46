package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/sakuracloud/storefront/internal/storefront/service"
)

// callbackResponse is the JSON acknowledgment the gateway expects.
type callbackResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

// PaymentCallback receives the gateway's asynchronous settlement webhook.
// The gateway retries unacknowledged deliveries on its own schedule, so the
// response carries no retry instructions: 200 means applied or duplicate,
// 400 means rejected with no state change.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeCallbackResponse(w, http.StatusBadRequest, "Malformed form data")
		return
	}

	req := service.CallbackRequest{
		MerchantCode:    r.PostFormValue("merchantCode"),
		Amount:          r.PostFormValue("amount"),
		MerchantOrderID: r.PostFormValue("merchantOrderId"),
		ProductDetail:   r.PostFormValue("productDetail"),
		AdditionalParam: r.PostFormValue("additionalParam"),
		PaymentCode:     r.PostFormValue("paymentCode"),
		ResultCode:      r.PostFormValue("resultCode"),
		MerchantUserID:  r.PostFormValue("merchantUserId"),
		Reference:       r.PostFormValue("reference"),
		Signature:       r.PostFormValue("signature"),
	}

	err := h.Reconciler.Handle(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrCallbackRejected) {
			log.Printf("callback rejected for merchant order %q: %v", req.MerchantOrderID, err)
			writeCallbackResponse(w, http.StatusBadRequest, "Error processing callback: "+err.Error())
			return
		}
		log.Printf("callback processing failed for merchant order %q: %v", req.MerchantOrderID, err)
		writeCallbackResponse(w, http.StatusInternalServerError, "Error processing callback")
		return
	}

	writeCallbackResponse(w, http.StatusOK, "Callback processed successfully")
}

func writeCallbackResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(callbackResponse{
		Status:  code == http.StatusOK,
		Message: message,
	})
}
