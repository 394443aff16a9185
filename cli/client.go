package cli

import (
	"context"
	"elmah/models"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is the HTTP client for talking to an elmah server
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ErrorPage is one page of the error list.
type ErrorPage struct {
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Entries  []models.ErrorSummary `json:"entries"`
}

type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// NewClient creates a new HTTP client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest executes an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, contentType string, body io.Reader) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// handleResponse decodes the response envelope into result
func (c *Client) handleResponse(resp *http.Response, result interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return responseError(resp)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if result != nil {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

func responseError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var env envelope
	if json.Unmarshal(bodyBytes, &env) == nil && env.Message != "" {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, env.Message)
	}
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
}

func appQuery(app string) url.Values {
	q := url.Values{}
	if app != "" {
		q.Set("app", app)
	}
	return q
}

// HealthCheck pings the health endpoint
func (c *Client) HealthCheck(ctx context.Context) error {
	resp, err := c.doRequest(ctx, "GET", "/api/health", nil, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy: HTTP %d", resp.StatusCode)
	}
	return nil
}

// Applications lists the applications the server logs for
func (c *Client) Applications(ctx context.Context) ([]string, error) {
	resp, err := c.doRequest(ctx, "GET", "/api/applications", nil, "", nil)
	if err != nil {
		return nil, err
	}

	var apps []string
	if err := c.handleResponse(resp, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// ListErrors fetches one zero-based page of errors
func (c *Client) ListErrors(ctx context.Context, app string, page, pageSize int) (*ErrorPage, error) {
	q := appQuery(app)
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))

	resp, err := c.doRequest(ctx, "GET", "/api/errors", q, "", nil)
	if err != nil {
		return nil, err
	}

	var result ErrorPage
	if err := c.handleResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetError fetches the detail of a single error
func (c *Client) GetError(ctx context.Context, app, id string) (*models.ErrorDetail, error) {
	resp, err := c.doRequest(ctx, "GET", "/api/errors/"+url.PathEscape(id), appQuery(app), "", nil)
	if err != nil {
		return nil, err
	}

	var detail models.ErrorDetail
	if err := c.handleResponse(resp, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetErrorXML fetches the canonical XML of a single error
func (c *Client) GetErrorXML(ctx context.Context, app, id string) (string, error) {
	resp, err := c.doRequest(ctx, "GET", "/api/errors/"+url.PathEscape(id)+"/xml", appQuery(app), "", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", responseError(resp)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// LogXML posts a canonical XML error document and returns the new id
func (c *Client) LogXML(ctx context.Context, app string, doc io.Reader) (string, error) {
	resp, err := c.doRequest(ctx, "POST", "/api/errors", appQuery(app), "application/xml", doc)
	if err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := c.handleResponse(resp, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// Download copies the CSV export of app to w
func (c *Client) Download(ctx context.Context, app string, w io.Writer) error {
	resp, err := c.doRequest(ctx, "GET", "/api/errors/download", appQuery(app), "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}
