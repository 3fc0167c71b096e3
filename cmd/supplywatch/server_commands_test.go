package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCommand_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	var out bytes.Buffer
	err := newApp(&out).Run([]string{"supplywatch", "--server-url", server.URL, "server", "health"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Server is healthy")
}

func TestHealthCommand_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	var out bytes.Buffer
	err := newApp(&out).Run([]string{"supplywatch", "--server-url", server.URL, "server", "health"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestHealthCommand_ServerDown(t *testing.T) {
	var out bytes.Buffer
	err := newApp(&out).Run([]string{"supplywatch", "--server-url", "http://127.0.0.1:1", "server", "health", "--timeout", "1s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health check failed")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	err := newApp(&out).Run([]string{"supplywatch", "server", "version"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "supplywatch CLI")
	assert.Contains(t, out.String(), "Version: dev")
}
