/*
 * Copyright 2025 StoreOps Labs.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package devices

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultDialTimeout = 10 * time.Second
	maxImageBytes      = 8 << 20
)

// HTTPDialerConfig tunes the JSON-over-HTTP device platform client.
type HTTPDialerConfig struct {
	// Scheme defaults to https.
	Scheme string `json:"scheme,omitempty"`
	// Timeout bounds every request, including the handshake.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// HTTPDialer establishes device sessions against the platform's HTTP API.
type HTTPDialer struct {
	scheme string
	client *http.Client
}

// NewHTTPDialer creates a dialer with its own pooled HTTP client.
func NewHTTPDialer(cfg HTTPDialerConfig) *HTTPDialer {
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "https"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	return &HTTPDialer{
		scheme: scheme,
		client: &http.Client{Timeout: timeout},
	}
}

// Dial performs the session handshake and returns a live client.
func (d *HTTPDialer) Dial(ctx context.Context, machineID, address, token string) (Client, error) {
	base := fmt.Sprintf("%s://%s", d.scheme, address)

	session := &httpSession{
		machineID: machineID,
		baseURL:   base,
		token:     token,
		client:    d.client,
		createdAt: time.Now(),
	}

	body, err := session.post(ctx, "/api/v1/sessions", map[string]string{"machine_id": machineID})
	if err != nil {
		return nil, fmt.Errorf("handshake with %s failed: %w", address, err)
	}

	var resp struct {
		SessionID string `json:"session_id"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("handshake with %s returned malformed response: %w", address, err)
	}

	session.sessionID = resp.SessionID

	return session, nil
}

// httpSession is one established session. The session id and bearer token
// accompany every request.
type httpSession struct {
	machineID string
	baseURL   string
	token     string
	sessionID string
	client    *http.Client
	createdAt time.Time
}

func (s *httpSession) Ping(ctx context.Context) error {
	_, err := s.get(ctx, "/api/v1/status")
	return err
}

func (s *httpSession) ResourceNames(ctx context.Context) ([]Resource, error) {
	body, err := s.get(ctx, "/api/v1/resources")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Resources []Resource `json:"resources"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("malformed resource list: %w", err)
	}

	return resp.Resources, nil
}

func (s *httpSession) Readings(ctx context.Context, name string) (map[string]interface{}, error) {
	body, err := s.get(ctx, "/api/v1/components/"+url.PathEscape(name)+"/readings")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Readings map[string]interface{} `json:"readings"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("malformed readings payload for %s: %w", name, err)
	}

	return resp.Readings, nil
}

func (s *httpSession) Image(ctx context.Context, camera string) ([]byte, error) {
	return s.get(ctx, "/api/v1/cameras/"+url.PathEscape(camera)+"/image")
}

func (s *httpSession) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.baseURL+"/api/v1/sessions/"+url.PathEscape(s.sessionID), http.NoBody)
	if err != nil {
		return err
	}

	s.decorate(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.Body.Close()
}

func (s *httpSession) decorate(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.token)

	if s.sessionID != "" {
		req.Header.Set("X-Session-Id", s.sessionID)
	}
}

func (s *httpSession) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, http.NoBody)
	if err != nil {
		return nil, err
	}

	return s.do(req)
}

func (s *httpSession) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	return s.do(req)
}

func (s *httpSession) do(req *http.Request) ([]byte, error) {
	s.decorate(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%s %s returned %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	return body, nil
}
