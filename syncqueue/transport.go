// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/yairabf/KithchenHub-sub001/syncwire"
)

// HTTPRemote talks to the batch-sync endpoint over HTTP. Status codes map
// onto the error taxonomy: connectivity failures become TransportError,
// 401/403 become AuthError, other 4xx become ValidationError, 5xx become
// ServerError. Only a 2xx response yields a SyncResponse.
type HTTPRemote struct {
	BaseURL string
	Token   func(context.Context) (string, error) // returns a bearer token
	HTTP    *http.Client
	logger  *slog.Logger
}

// NewHTTPRemote creates a transport for the given endpoint base URL.
func NewHTTPRemote(baseURL string, token func(context.Context) (string, error), logger *slog.Logger) *HTTPRemote {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPRemote{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

// Sync implements RemoteSync.
func (r *HTTPRemote) Sync(ctx context.Context, req *syncwire.BatchSyncRequest) (*syncwire.SyncResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sync request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/sync/batch", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.RequestID != "" {
		httpReq.Header.Set("X-Request-ID", req.RequestID)
	}

	token, err := r.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get bearer token: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.HTTP.Do(httpReq)
	if err != nil {
		// The request never produced a server response.
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, classifyStatus(resp.StatusCode, string(body))
	}

	var syncResp syncwire.SyncResponse
	if err := json.NewDecoder(resp.Body).Decode(&syncResp); err != nil {
		return nil, fmt.Errorf("failed to decode sync response: %w", err)
	}

	r.logger.Debug("sync response received",
		"status", syncResp.Status, "conflicts", len(syncResp.Conflicts))
	return &syncResp, nil
}

// classifyStatus maps a non-2xx status code onto the error taxonomy.
func classifyStatus(code int, body string) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &AuthError{StatusCode: code, Message: body}
	case code >= 400 && code < 500:
		return &ValidationError{StatusCode: code, Message: body}
	default:
		return &ServerError{StatusCode: code, Message: body}
	}
}
