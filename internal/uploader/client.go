package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/peardrive/peardrive/internal/protocol"
)

// Client talks to the peardrive API with auth and timeouts. Provider
// upload PUTs go through the same underlying http.Client but without
// the auth header, since session URLs carry their own credentials.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.RWMutex
	authToken string
}

// Config holds client configuration.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	AuthToken string
}

// NewClient creates a new API client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		authToken: cfg.AuthToken,
	}
}

// SetAuthToken sets the JWT auth token for requests.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authToken = token
}

func (c *Client) applyAuth(req *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}

// LoginResponse is the response from POST /api/v1/auth/token.
type LoginResponse struct {
	Token string `json:"token"`
	User  struct {
		ID       int    `json:"id"`
		Username string `json:"username"`
		IsAdmin  bool   `json:"is_admin"`
	} `json:"user"`
}

// Login authenticates with username/password and stores the token for
// subsequent requests.
func (c *Client) Login(ctx context.Context, username, password, deviceName string) (*LoginResponse, error) {
	body, _ := json.Marshal(map[string]string{
		"username":    username,
		"password":    password,
		"device_name": deviceName,
	})

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/auth/token", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("login failed (%d): %s", resp.StatusCode, string(data))
	}

	var result LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parse login response: %w", err)
	}

	c.SetAuthToken(result.Token)
	return &result, nil
}

// RequestUploadSession asks the server for a resumable upload session.
func (c *Client) RequestUploadSession(ctx context.Context, name, mimeType string, size int64, folderID string) (*protocol.UploadSessionResponse, error) {
	body, _ := json.Marshal(protocol.UploadSessionRequest{
		FileName: name,
		MimeType: mimeType,
		Size:     size,
		FolderID: folderID,
	})

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/uploads/session", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp protocol.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("session request failed: %s", errResp.Error)
		}
		return nil, fmt.Errorf("session request failed: %d", resp.StatusCode)
	}

	var result protocol.UploadSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parse session response: %w", err)
	}
	return &result, nil
}

// UploadToSession PUTs the file bytes to a provider session URL and
// returns the provider's completion body. The auth header is not sent:
// session URLs are pre-authorized.
func (c *Client) UploadToSession(ctx context.Context, uploadURL, mimeType string, size int64, content io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "PUT", uploadURL, content)
	if err != nil {
		return nil, err
	}
	req.ContentLength = size
	if mimeType != "" {
		req.Header.Set("Content-Type", mimeType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upload rejected (%d): %s", resp.StatusCode, string(data))
	}
	return data, nil
}

// FinalizeUpload registers the uploaded file with the server.
func (c *Client) FinalizeUpload(ctx context.Context, req protocol.FinalizeUploadRequest) (*protocol.FileResponse, error) {
	body, _ := json.Marshal(req)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/uploads/finalize", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.applyAuth(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("finalize request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		var errResp protocol.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("finalize failed: %s", errResp.Error)
		}
		return nil, fmt.Errorf("finalize failed: %d", resp.StatusCode)
	}

	var result protocol.FileResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parse finalize response: %w", err)
	}
	return &result, nil
}

// Logout revokes the current token on the server.
func (c *Client) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "DELETE", c.baseURL+"/api/v1/auth/token", nil)
	if err != nil {
		return err
	}
	c.applyAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	defer resp.Body.Close()

	c.SetAuthToken("")
	return nil
}
