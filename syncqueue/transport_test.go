// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yairabf/KithchenHub-sub001/syncwire"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func staticToken(token string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return token, nil }
}

func jsonResponse(code int, body string) *http.Response {
	return &http.Response{
		StatusCode: code,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func TestSyncSendsBatchRequest(t *testing.T) {
	remote := NewHTTPRemote("https://hub.example.com", staticToken("tok-123"), testLogger())
	remote.HTTP = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.Method != "POST" || r.URL.Path != "/sync/batch" {
			return nil, fmt.Errorf("unexpected request: %s %s", r.Method, r.URL.String())
		}
		require.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "req-1", r.Header.Get("X-Request-ID"))

		var req syncwire.BatchSyncRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "req-1", req.RequestID)
		require.Len(t, req.Recipes, 1)

		return jsonResponse(http.StatusOK, `{"status":"synced"}`), nil
	})}

	resp, err := remote.Sync(context.Background(), &syncwire.BatchSyncRequest{
		RequestID: "req-1",
		Recipes:   []syncwire.RecipeUpload{{ID: "r1", Title: "Pasta"}},
	})
	require.NoError(t, err)
	require.Equal(t, syncwire.StatusSynced, resp.Status)
	require.Empty(t, resp.Conflicts)
}

func TestSyncDecodesConflictReport(t *testing.T) {
	remote := NewHTTPRemote("https://hub.example.com", staticToken("tok"), testLogger())
	remote.HTTP = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK,
			`{"status":"partial","conflicts":[{"type":"recipe","id":"srv-r1","reason":"version mismatch"}]}`), nil
	})}

	resp, err := remote.Sync(context.Background(), &syncwire.BatchSyncRequest{RequestID: "req-1"})
	require.NoError(t, err)
	require.Equal(t, syncwire.StatusPartial, resp.Status)
	require.Len(t, resp.Conflicts, 1)
	require.Equal(t, "srv-r1", resp.Conflicts[0].ID)
}

func TestSyncClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		name   string
		code   int
		verify func(t *testing.T, err error)
	}{
		{"unauthorized", http.StatusUnauthorized, func(t *testing.T, err error) {
			var ae *AuthError
			require.ErrorAs(t, err, &ae)
			require.Equal(t, http.StatusUnauthorized, ae.StatusCode)
		}},
		{"forbidden", http.StatusForbidden, func(t *testing.T, err error) {
			var ae *AuthError
			require.ErrorAs(t, err, &ae)
		}},
		{"unprocessable", http.StatusUnprocessableEntity, func(t *testing.T, err error) {
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			require.Equal(t, http.StatusUnprocessableEntity, ve.StatusCode)
		}},
		{"payload too large", http.StatusRequestEntityTooLarge, func(t *testing.T, err error) {
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
		}},
		{"server error", http.StatusInternalServerError, func(t *testing.T, err error) {
			var se *ServerError
			require.ErrorAs(t, err, &se)
			require.Equal(t, http.StatusInternalServerError, se.StatusCode)
		}},
		{"bad gateway", http.StatusBadGateway, func(t *testing.T, err error) {
			var se *ServerError
			require.ErrorAs(t, err, &se)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			remote := NewHTTPRemote("https://hub.example.com", staticToken("tok"), testLogger())
			remote.HTTP = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
				return jsonResponse(tc.code, `{"error":"nope"}`), nil
			})}

			_, err := remote.Sync(context.Background(), &syncwire.BatchSyncRequest{RequestID: "req-1"})
			require.Error(t, err)
			tc.verify(t, err)
		})
	}
}

func TestSyncWrapsDialFailureAsTransportError(t *testing.T) {
	remote := NewHTTPRemote("https://hub.example.com", staticToken("tok"), testLogger())
	remote.HTTP = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return nil, fmt.Errorf("dial tcp: connection refused")
	})}

	_, err := remote.Sync(context.Background(), &syncwire.BatchSyncRequest{RequestID: "req-1"})
	var te *TransportError
	require.ErrorAs(t, err, &te)
}

func TestSyncTokenFailure(t *testing.T) {
	remote := NewHTTPRemote("https://hub.example.com", func(context.Context) (string, error) {
		return "", fmt.Errorf("keychain locked")
	}, testLogger())

	_, err := remote.Sync(context.Background(), &syncwire.BatchSyncRequest{RequestID: "req-1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "keychain locked")
}
