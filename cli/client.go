package cli

import (
	"bytes"
	"encoding/json"
	"errorshield/models"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is the HTTP client for the errorshield admin API
type Client struct {
	baseURL     string
	adminPrefix string
	user        string
	password    string
	httpClient  *http.Client
}

// envelope mirrors the server's response envelope
type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// APIError is a non-OK envelope or an unexpected HTTP status
type APIError struct {
	Status  int
	Code    string
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("HTTP %d %s: %s (%s)", e.Status, e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("HTTP %d %s: %s", e.Status, e.Code, e.Message)
}

// NewClient creates a new HTTP client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		adminPrefix: "/admin",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// A redirect from the server means the shield swallowed an error
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// WithCredentials sets basic auth credentials for the admin API.
func (c *Client) WithCredentials(user, password string) *Client {
	c.user = user
	c.password = password
	return c
}

// WithAdminPrefix sets the path prefix the server mounts the admin API under.
func (c *Client) WithAdminPrefix(prefix string) *Client {
	if prefix != "" {
		c.adminPrefix = "/" + strings.Trim(prefix, "/")
	}
	return c
}

// BaseURL returns the server URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) adminPath(path string) string {
	return c.adminPrefix + "/api" + path
}

// doRequest executes an HTTP request
func (c *Client) doRequest(method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// handleResponse decodes the envelope and its data into result
func (c *Client) handleResponse(resp *http.Response, result interface{}) error {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(bodyBytes, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode), Message: strings.TrimSpace(string(bodyBytes))}
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if env.Code != "OK" || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
		var detail struct {
			Detail any `json:"detail"`
		}
		if json.Unmarshal(env.Data, &detail) == nil && detail.Detail != nil {
			apiErr.Detail = fmt.Sprint(detail.Detail)
		}
		return apiErr
	}

	if result != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	return nil
}

// HealthStatus is the data of the health endpoint
type HealthStatus struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
	Version   string `json:"version"`
	SQLite    struct {
		Up           bool   `json:"up"`
		BusyErrors   uint64 `json:"busy_errors"`
		LockedErrors uint64 `json:"locked_errors"`
	} `json:"sqlite"`
}

// HealthCheck pings the health endpoint
func (c *Client) HealthCheck() (*HealthStatus, error) {
	resp, err := c.doRequest(http.MethodGet, "/api/health", nil)
	if err != nil {
		return nil, err
	}

	var health HealthStatus
	if err := c.handleResponse(resp, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

type settingsData struct {
	Settings models.LogConfig `json:"settings"`
}

// GetSettings returns the server's log configuration
func (c *Client) GetSettings() (*models.LogConfig, error) {
	resp, err := c.doRequest(http.MethodGet, c.adminPath("/settings"), nil)
	if err != nil {
		return nil, err
	}

	var data settingsData
	if err := c.handleResponse(resp, &data); err != nil {
		return nil, err
	}
	return &data.Settings, nil
}

// UpdateSettings applies a partial settings update
func (c *Client) UpdateSettings(req models.LogSettingsUpdate) (*models.LogConfig, error) {
	resp, err := c.doRequest(http.MethodPut, c.adminPath("/settings"), req)
	if err != nil {
		return nil, err
	}

	var data settingsData
	if err := c.handleResponse(resp, &data); err != nil {
		return nil, err
	}
	return &data.Settings, nil
}

// ResetSettings restores the default configuration
func (c *Client) ResetSettings() (*models.LogConfig, error) {
	resp, err := c.doRequest(http.MethodDelete, c.adminPath("/settings"), nil)
	if err != nil {
		return nil, err
	}

	var data settingsData
	if err := c.handleResponse(resp, &data); err != nil {
		return nil, err
	}
	return &data.Settings, nil
}

// ListLogs lists recent daily log files, most recent last
func (c *Client) ListLogs(limit int) ([]models.LogFileInfo, error) {
	path := c.adminPath("/logs")
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	resp, err := c.doRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		Files []models.LogFileInfo `json:"files"`
	}
	if err := c.handleResponse(resp, &data); err != nil {
		return nil, err
	}
	return data.Files, nil
}

// GetLog downloads one daily log file
func (c *Client) GetLog(name string) (string, error) {
	resp, err := c.doRequest(http.MethodGet, c.adminPath("/logs/"+url.PathEscape(name)), nil)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", c.handleResponse(resp, nil)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read log file: %w", err)
	}
	return string(data), nil
}

// ClearLogs deletes every daily log file on the server
func (c *Client) ClearLogs() (int, error) {
	resp, err := c.doRequest(http.MethodDelete, c.adminPath("/logs"), nil)
	if err != nil {
		return 0, err
	}

	var data struct {
		Removed int `json:"removed"`
	}
	if err := c.handleResponse(resp, &data); err != nil {
		return 0, err
	}
	return data.Removed, nil
}

// Hardening fetches the web server configuration report
func (c *Client) Hardening() (*models.HardeningReport, error) {
	resp, err := c.doRequest(http.MethodGet, c.adminPath("/hardening"), nil)
	if err != nil {
		return nil, err
	}

	var report models.HardeningReport
	if err := c.handleResponse(resp, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// GenerateShutdownCode asks the server for a shutdown confirmation code
func (c *Client) GenerateShutdownCode() (string, time.Time, error) {
	resp, err := c.doRequest(http.MethodPost, c.adminPath("/shutdown/generate-code"), nil)
	if err != nil {
		return "", time.Time{}, err
	}

	var data struct {
		Code      string `json:"code"`
		ExpiresAt int64  `json:"expires_at"`
	}
	if err := c.handleResponse(resp, &data); err != nil {
		return "", time.Time{}, err
	}
	return data.Code, time.Unix(data.ExpiresAt, 0), nil
}

// VerifyShutdown confirms a shutdown with the code
func (c *Client) VerifyShutdown(code string) error {
	resp, err := c.doRequest(http.MethodPost, c.adminPath("/shutdown/verify"), map[string]string{"code": code})
	if err != nil {
		return err
	}
	return c.handleResponse(resp, nil)
}
