// Package gateway is the typed HTTP client for the knot backend.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lu-zhengda/knot/internal/domain"
)

// Client talks to a running knot backend. Calls are never retried.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type errorBody struct {
	Detail string `json:"detail"`
}

type messageBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type dataBody[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

type scanBody struct {
	Success  bool                `json:"success"`
	ScanPath string              `json:"scan_path"`
	Count    int                 `json:"count"`
	Folders  []domain.WorkFolder `json:"folders"`
}

type checkBody struct {
	Success bool `json:"success"`
	domain.CheckResult
}

type batchRequest struct {
	Items []domain.MoveItem `json:"items"`
}

// Health reports the backend status string.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// Connect opens the backend's mail session.
func (c *Client) Connect(ctx context.Context, conn domain.MailConnection) (string, error) {
	var out messageBody
	if err := c.do(ctx, http.MethodPost, "/api/mail/connect", conn, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// ListMail returns recent messages, newest first.
func (c *Client) ListMail(ctx context.Context, limit, days int) ([]domain.MailItem, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	path := "/api/mail/list"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out dataBody[[]domain.MailItem]
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		out.Data = []domain.MailItem{}
	}
	return out.Data, nil
}

// MailDetail fetches the body and attachment list of one message.
func (c *Client) MailDetail(ctx context.Context, id string) (*domain.MailDetail, error) {
	var out dataBody[domain.MailDetail]
	if err := c.do(ctx, http.MethodGet, "/api/mail/"+url.PathEscape(id)+"/detail", nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// Attachments lists a message's attachments.
func (c *Client) Attachments(ctx context.Context, id string) ([]domain.Attachment, error) {
	var out dataBody[[]domain.Attachment]
	if err := c.do(ctx, http.MethodGet, "/api/mail/"+url.PathEscape(id)+"/attachments", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// CreateFolder materializes a work folder without downloading attachments.
func (c *Client) CreateFolder(ctx context.Context, req domain.FolderRequest) (*domain.FolderResult, error) {
	var out domain.FolderResult
	if err := c.do(ctx, http.MethodPost, "/api/folder/create", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateFolderWithAttachments materializes a work folder and saves the
// mail's attachments into it.
func (c *Client) CreateFolderWithAttachments(ctx context.Context, req domain.FolderRequest) (*domain.FolderResult, error) {
	var out domain.FolderResult
	if err := c.do(ctx, http.MethodPost, "/api/folder/create-with-attachments", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckHash asks the backend to search its roots for a fingerprint.
func (c *Client) CheckHash(ctx context.Context, req domain.CheckHashRequest) (domain.CheckResult, error) {
	var out checkBody
	if err := c.do(ctx, http.MethodPost, "/api/folder/check-hash", req, &out); err != nil {
		return domain.CheckResult{}, err
	}
	if out.Matches == nil {
		out.Matches = []domain.HashMatch{}
	}
	return out.CheckResult, nil
}

// Scan lists the work folders under path.
func (c *Client) Scan(ctx context.Context, path string, recursive bool) ([]domain.WorkFolder, error) {
	q := url.Values{}
	if path != "" {
		q.Set("scan_path", path)
	}
	if recursive {
		q.Set("recursive", "true")
	}
	p := "/api/archive/scan"
	if len(q) > 0 {
		p += "?" + q.Encode()
	}
	var out scanBody
	if err := c.do(ctx, http.MethodGet, p, nil, &out); err != nil {
		return nil, err
	}
	if out.Folders == nil {
		out.Folders = []domain.WorkFolder{}
	}
	return out.Folders, nil
}

// Move archives one folder.
func (c *Client) Move(ctx context.Context, item domain.MoveItem) (domain.MoveResult, error) {
	var out domain.MoveResult
	if err := c.do(ctx, http.MethodPost, "/api/archive/move", item, &out); err != nil {
		return domain.MoveResult{}, err
	}
	return out, nil
}

// BatchMove archives several folders in one request.
func (c *Client) BatchMove(ctx context.Context, items []domain.MoveItem) (domain.BatchResult, error) {
	var out domain.BatchResult
	if err := c.do(ctx, http.MethodPost, "/api/archive/batch-move", batchRequest{Items: items}, &out); err != nil {
		return domain.BatchResult{}, err
	}
	return out, nil
}

// UpdateWorkRecord rewrites a folder's work record.
func (c *Client) UpdateWorkRecord(ctx context.Context, folderPath, department, content string) error {
	req := domain.WorkRecordUpdate{FolderPath: folderPath, Department: department, Content: content}
	var out messageBody
	return c.do(ctx, http.MethodPost, "/api/archive/update-work-record", req, &out)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: method + " " + path, Err: fmt.Errorf("reading response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e errorBody
		if json.Unmarshal(respBody, &e) != nil || e.Detail == "" {
			e.Detail = strings.TrimSpace(string(respBody))
		}
		return &APIError{Status: resp.StatusCode, Detail: e.Detail}
	}

	if result == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("decoding response from %s %s: %w", method, path, err)
	}
	return nil
}
