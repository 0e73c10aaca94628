package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/batchledger/internal/config"
)

func TestSendTextMessage(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v21.0/12345/messages", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer srv.Close()

	client := NewClient(config.WhatsAppConfig{AccessToken: "token", PhoneNumberID: "12345", BaseURL: srv.URL + "/", APIVersion: "v21.0"})
	resp, err := client.SendTextMessage(context.Background(), SendTextMessageRequest{To: "905551112233", Body: "hello"})
	require.NoError(t, err)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "wamid.1", resp.Messages[0].ID)
	assert.Equal(t, "905551112233", body["to"])
	assert.Equal(t, "text", body["type"])
}

func TestSendTextMessageAPIError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid recipient","code":131030}}`))
	}))
	defer srv.Close()

	client := NewClient(config.WhatsAppConfig{AccessToken: "token", PhoneNumberID: "1", BaseURL: srv.URL, APIVersion: "v21.0"})
	_, err := client.SendTextMessage(context.Background(), SendTextMessageRequest{To: "1", Body: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "131030")
	assert.Contains(t, err.Error(), "invalid recipient")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendTextMessageNeedsRecipient(t *testing.T) {
	client := NewClient(config.WhatsAppConfig{BaseURL: "http://127.0.0.1:1", APIVersion: "v1"})
	_, err := client.SendTextMessage(context.Background(), SendTextMessageRequest{Body: "x"})
	assert.Error(t, err)
}
