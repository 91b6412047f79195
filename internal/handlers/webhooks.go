package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"textback/internal/metrics"
	"textback/internal/services"
)

// maxWebhookBody caps webhook payloads; providers send small documents.
const maxWebhookBody = 1 << 20

// CallWebhook receives missed-call events from the telephony provider.
// The provider expects a fast acknowledgement, so the event is accepted
// with 202 and the billing workflow runs detached from the request.
func (h *Handler) CallWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unable to read body")
		return
	}
	signedURL := "https://" + r.Host + r.URL.RequestURI()
	if !verifyTelephonySignature(signedURL, body, r.Header.Get("X-Webhook-Signature"), h.cfg.TelephonySecret) {
		metrics.WebhooksReceived.WithLabelValues("telephony", "bad_signature").Inc()
		respondError(w, http.StatusUnauthorized, "invalid signature")
		return
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		metrics.WebhooksReceived.WithLabelValues("telephony", "bad_payload").Inc()
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	event := services.CallEvent{
		ProviderCallID: form.Get("CallSid"),
		CallerNumber:   form.Get("From"),
		CalledNumber:   form.Get("To"),
		RecordingURL:   form.Get("RecordingUrl"),
	}
	if event.ProviderCallID == "" || event.CallerNumber == "" || event.CalledNumber == "" {
		metrics.WebhooksReceived.WithLabelValues("telephony", "bad_payload").Inc()
		respondError(w, http.StatusBadRequest, "missing call fields")
		return
	}
	metrics.WebhooksReceived.WithLabelValues("telephony", "accepted").Inc()

	// Acknowledged before processing: the provider's retry clock stops
	// here, and duplicate deliveries are absorbed by the call-log guard.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
		defer cancel()
		_ = h.billing.ProcessMissedCall(ctx, event)
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type paymentWebhookPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			Customer string `json:"customer"`
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
		} `json:"object"`
	} `json:"data"`
}

// PaymentWebhook receives payment events from the payment provider.
// Processing is synchronous so a failure surfaces as 500 and the
// provider redelivers; the event-id guard makes redelivery harmless.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unable to read body")
		return
	}
	if !verifyPaymentSignature(body, r.Header.Get("Payment-Signature"), h.cfg.PaymentSecret, time.Now()) {
		metrics.WebhooksReceived.WithLabelValues("payment", "bad_signature").Inc()
		respondError(w, http.StatusUnauthorized, "invalid signature")
		return
	}
	var payload paymentWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.WebhooksReceived.WithLabelValues("payment", "bad_payload").Inc()
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if payload.ID == "" {
		metrics.WebhooksReceived.WithLabelValues("payment", "bad_payload").Inc()
		respondError(w, http.StatusBadRequest, "missing event id")
		return
	}

	event := services.PaymentEvent{
		ProviderEventID:    payload.ID,
		ProviderCustomerID: payload.Data.Object.Customer,
		AmountCents:        payload.Data.Object.Amount,
		Currency:           payload.Data.Object.Currency,
	}
	switch payload.Type {
	case "payment_intent.succeeded":
		err = h.payments.HandlePaymentSucceeded(r.Context(), event)
	case "payment_intent.payment_failed":
		err = h.payments.HandlePaymentFailed(r.Context(), event)
	default:
		metrics.WebhooksReceived.WithLabelValues("payment", "ignored").Inc()
		respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if err != nil {
		metrics.WebhooksReceived.WithLabelValues("payment", "error").Inc()
		respondError(w, http.StatusInternalServerError, "processing failed")
		return
	}
	metrics.WebhooksReceived.WithLabelValues("payment", "processed").Inc()
	respondJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}
