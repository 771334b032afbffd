package platform

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipagent/flipagent/internal/schema"
)

func TestInvokeGETFillsPathAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/items/B00123", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "k1", r.Header.Get("X-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"price": 19.99}`))
	}))
	defer srv.Close()

	c := NewClient(map[schema.Platform]Endpoint{schema.PlatformAmazon: {BaseURL: srv.URL, RequestsPerSecond: 100}}, 0)
	out, err := c.Invoke(context.Background(),
		Operation{Platform: schema.PlatformAmazon, Method: "GET", Path: "/items/{asin}"},
		schema.Credentials{"access_token": "tok", "api_key": "k1"},
		map[string]any{"asin": "B00123", "limit": 3.0},
	)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"price": 19.99}, out)
}

func TestInvokePOSTSendsJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Lamp", body["title"])
		assert.NotContains(t, body, "sku")
		assert.Equal(t, "/inventory/SKU-1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(map[schema.Platform]Endpoint{schema.PlatformEbay: {BaseURL: srv.URL + "/"}}, 0)
	out, err := c.Invoke(context.Background(),
		Operation{Platform: schema.PlatformEbay, Method: "PUT", Path: "/inventory/{sku}"},
		nil,
		map[string]any{"sku": "SKU-1", "title": "Lamp"},
	)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"status": "ok"}, out)
}

func TestInvokeNon2xxIsTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(map[schema.Platform]Endpoint{schema.PlatformWalmart: {BaseURL: srv.URL}}, 0)
	_, err := c.Invoke(context.Background(), Operation{Platform: schema.PlatformWalmart, Method: "GET", Path: "/orders"}, nil, nil)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "Walmart")
}

func TestInvokeMissingPathParam(t *testing.T) {
	c := NewClient(map[schema.Platform]Endpoint{schema.PlatformEbay: {BaseURL: "http://127.0.0.1:1"}}, 0)
	_, err := c.Invoke(context.Background(), Operation{Platform: schema.PlatformEbay, Method: "GET", Path: "/item/{item_id}"}, nil, map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item_id")
}

func TestInvokeUnconfiguredPlatform(t *testing.T) {
	c := NewClient(nil, 0)
	assert.False(t, c.Configured(schema.PlatformAliExpress))
	_, err := c.Invoke(context.Background(), Operation{Platform: schema.PlatformAliExpress, Method: "GET", Path: "/x"}, nil, nil)
	require.Error(t, err)
}
