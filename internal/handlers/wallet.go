package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"textback/internal/middleware"
	"textback/internal/money"
	"textback/internal/pricing"
	"textback/internal/store"
	"textback/internal/validator"
)

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	summary, err := h.wallets.Summary(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load wallet")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":             summary.UserID,
		"balance":             money.FormatCents(summary.BalanceCents),
		"balance_cents":       summary.BalanceCents,
		"currency":            summary.Currency,
		"replayed_cents":      summary.ReplayedCents,
		"difference_cents":    summary.DifferenceCents,
		"auto_reload_enabled": summary.AutoReloadEnabled,
	})
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit, offset := paging(r)
	transactions, err := h.txns.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load transactions")
		return
	}
	normalized := make([]map[string]any, 0, len(transactions))
	for _, txn := range transactions {
		normalized = append(normalized, map[string]any{
			"id":            txn.ID,
			"type":          txn.Type,
			"amount":        money.FormatCents(txn.AmountCents),
			"amount_cents":  txn.AmountCents,
			"description":   txn.Description,
			"reference_id":  txn.ReferenceID,
			"balance_after": money.FormatCents(txn.BalanceAfterCents),
			"created_at":    txn.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}

type autoReloadRequest struct {
	Enabled        bool   `json:"enabled"`
	Threshold      string `json:"threshold"`
	Amount         string `json:"amount"`
	ThresholdCents *int64 `json:"threshold_cents"`
	AmountCents    *int64 `json:"amount_cents"`
}

func (h *Handler) SetAutoReload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req autoReloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	thresholdCents, err := centsField(req.ThresholdCents, req.Threshold)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid threshold")
		return
	}
	amountCents, err := centsField(req.AmountCents, req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	if req.Enabled && (thresholdCents <= 0 || amountCents <= 0) {
		respondError(w, http.StatusBadRequest, "threshold and amount must be positive")
		return
	}
	if err := h.wallets.SetAutoReload(r.Context(), userID, req.Enabled, thresholdCents, amountCents); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update auto-reload")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"enabled":         req.Enabled,
		"threshold_cents": thresholdCents,
		"amount_cents":    amountCents,
	})
}

type featuresRequest struct {
	Plan                 string `json:"plan"`
	FollowUpEnabled      bool   `json:"follow_up_enabled"`
	RepeatCallerEnabled  bool   `json:"repeat_caller_enabled"`
	TwoWayEnabled        bool   `json:"two_way_enabled"`
	VIPPriorityEnabled   bool   `json:"vip_priority_enabled"`
	TranscriptionEnabled bool   `json:"transcription_enabled"`
}

func (h *Handler) UpdateFeatures(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req featuresRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Plan != string(pricing.PlanBasic) && req.Plan != string(pricing.PlanPro) {
		respondError(w, http.StatusBadRequest, "unknown plan")
		return
	}
	err := h.users.UpdateFeatures(r.Context(), userID, store.FeatureUpdate{
		Plan:                 req.Plan,
		FollowUpEnabled:      req.FollowUpEnabled,
		RepeatCallerEnabled:  req.RepeatCallerEnabled,
		TwoWayEnabled:        req.TwoWayEnabled,
		VIPPriorityEnabled:   req.VIPPriorityEnabled,
		TranscriptionEnabled: req.TranscriptionEnabled,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update features")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type paymentMethodRequest struct {
	ProviderCustomerID string `json:"provider_customer_id"`
	PaymentMethodRef   string `json:"payment_method_ref"`
}

// SavePaymentMethod stores the provider-side customer mapping used by
// auto-reload charges and payment webhook attribution.
func (h *Handler) SavePaymentMethod(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req paymentMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.ProviderCustomerID == "" || req.PaymentMethodRef == "" {
		respondError(w, http.StatusBadRequest, "provider_customer_id and payment_method_ref are required")
		return
	}
	if err := h.customers.UpsertCustomer(r.Context(), userID, req.ProviderCustomerID, req.PaymentMethodRef); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to save payment method")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

type vipCallerRequest struct {
	CallerNumber string `json:"caller_number"`
}

func (h *Handler) AddVIPCaller(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req vipCallerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidatePhone(req.CallerNumber); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.users.AddVIPCaller(r.Context(), userID, req.CallerNumber); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to add vip caller")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"caller_number": req.CallerNumber})
}

func (h *Handler) ListCalls(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit, offset := paging(r)
	calls, err := h.calls.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load calls")
		return
	}
	normalized := make([]map[string]any, 0, len(calls))
	for _, call := range calls {
		normalized = append(normalized, map[string]any{
			"id":              call.ID,
			"caller_number":   call.CallerNumber,
			"vip_caller":      call.VIPCaller,
			"has_voicemail":   call.HasVoicemail,
			"transcript":      call.Transcript,
			"reply_body":      call.ReplyBody,
			"total":           money.FormatCents(call.TotalCents),
			"total_cents":     call.TotalCents,
			"delivery_status": call.DeliveryStatus,
			"billing_status":  call.BillingStatus,
			"owner_notified":  call.OwnerNotified,
			"created_at":      call.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}

// centsField accepts either an integer-cents field or a decimal string.
func centsField(cents *int64, text string) (int64, error) {
	if cents != nil {
		return *cents, nil
	}
	if text == "" {
		return 0, nil
	}
	return money.ParseCents(text)
}

func paging(r *http.Request) (limit, offset int) {
	limit = 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
