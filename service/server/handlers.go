package server

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

const (
	maxRequestBodySize = 10 << 20 // 10MB, large enhanced-transaction batches

	msgNothingToProcess = "No transactions to process"
	msgProcessed        = "Webhook processed"
)

// authPolicy describes the bearer check applied to webhook requests.
type authPolicy struct {
	secret   string
	required bool
}

// allow reports whether the Authorization header satisfies the policy.
// A missing or empty header passes unless the policy requires one.
func (p authPolicy) allow(r *http.Request) bool {
	got := r.Header.Get("Authorization")
	if got == "" {
		return !p.required
	}
	want := "Bearer " + p.secret
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// handleWebhook returns a handler for enhanced-transaction webhook deliveries.
// POST /webhook
func handleWebhook(evaluator Evaluator, auth authPolicy, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if !auth.allow(r) {
			logger.Warn("rejected webhook with bad authorization", "remote_addr", r.RemoteAddr)
			writeError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, "request body too large", http.StatusBadRequest)
				return
			}
			logger.Debug("failed to read webhook body", "error", err)
			writeError(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		if !json.Valid(body) {
			logger.Debug("webhook body is not valid JSON", "bytes", len(body))
			writeError(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		txns, ok := transactionList(body)
		if !ok {
			writeJSON(w, map[string]string{"message": msgNothingToProcess}, http.StatusOK)
			return
		}

		if evaluator.WalletCount() == 0 {
			logger.Error("webhook received but no watched wallets are configured")
			writeError(w, "No watched wallets configured", http.StatusInternalServerError)
			return
		}

		summary := evaluator.Evaluate(r.Context(), txns)
		logger.Info("webhook processed", "summary", summary)

		writeJSON(w, map[string]string{"message": msgProcessed}, http.StatusOK)
	})
}

// transactionList returns the elements of a non-empty JSON array.
// Any other JSON value yields false.
func transactionList(body []byte) ([]json.RawMessage, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '[' {
		return nil, false
	}
	var txns []json.RawMessage
	if err := json.Unmarshal(body, &txns); err != nil || len(txns) == 0 {
		return nil, false
	}
	return txns, true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
