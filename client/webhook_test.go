package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brojonat/supplywatch/service/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendTransactions_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/webhook", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))

		var body []map[string]interface{}
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) && assert.Len(t, body, 1) {
			assert.Equal(t, "S1", body[0]["signature"])
			assert.Equal(t, "TRANSFER", body[0]["type"])
			transfers := body[0]["tokenTransfers"].([]interface{})
			assert.Equal(t, "250000", transfers[0].(map[string]interface{})["tokenAmount"])
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Webhook processed"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil).WithAuthSecret("s3cret")
	resp, err := client.SendTransactions(context.Background(), []webhook.Transaction{{
		Signature: "S1",
		Type:      webhook.TransferType,
		TokenTransfers: []webhook.TokenTransfer{{
			Mint:            "M1",
			FromUserAccount: "F1",
			ToUserAccount:   "W1",
			TokenAmount:     "250000",
		}},
	}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Webhook processed", resp.Message)
}

func TestSendRaw_CustomPathWithoutAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/webhook", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "No transactions to process"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil).WithPath("/api/webhook")
	resp, err := client.SendRaw(context.Background(), []byte(`[]`))
	require.NoError(t, err)
	assert.Equal(t, "No transactions to process", resp.Message)
}

func TestSendRaw_ServerError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":"Unauthorized"}`, wantErr: "status 401: Unauthorized"},
		{name: "misconfigured", status: http.StatusInternalServerError, body: `{"error":"No watched wallets configured"}`, wantErr: "No watched wallets configured"},
		{name: "plain text", status: http.StatusBadGateway, body: "upstream down", wantErr: "status 502: upstream down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL, nil, nil)
			_, err := client.SendRaw(context.Background(), []byte(`[]`))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHealth(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	assert.NoError(t, client.Health(context.Background()))

	healthy = false
	err := client.Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
