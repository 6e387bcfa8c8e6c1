package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/locu5t/civicomfy-go/api/handlers"
	"github.com/locu5t/civicomfy-go/internal/domain"
)

// apiClient talks to a running civicomfy server
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (c *apiClient) do(method, path string, body interface{}, out interface{}, okStatus ...int) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}

	accepted := false
	for _, s := range okStatus {
		if resp.StatusCode == s {
			accepted = true
			break
		}
	}
	if !accepted {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &payload)
		return resp.StatusCode, &apiError{Status: resp.StatusCode, Message: payload.Error}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// Add enqueues a download and returns its id
func (c *apiClient) Add(req handlers.AddDownloadRequest) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if _, err := c.do(http.MethodPost, "/api/v1/downloads", req, &resp, http.StatusCreated); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Cancel reports whether the server found something to cancel
func (c *apiClient) Cancel(id string) (bool, error) {
	var resp struct {
		Cancelled bool `json:"cancelled"`
	}
	status, err := c.do(http.MethodPost, "/api/v1/downloads/"+url.PathEscape(id)+"/cancel", nil, &resp,
		http.StatusOK, http.StatusNotFound)
	if err != nil {
		return false, err
	}
	return status == http.StatusOK && resp.Cancelled, nil
}

// Status returns the scheduler snapshot
func (c *apiClient) Status() (*domain.StatusSnapshot, error) {
	var snap domain.StatusSnapshot
	if _, err := c.do(http.MethodGet, "/api/v1/downloads/status", nil, &snap, http.StatusOK); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Get returns one task from any scheduler collection
func (c *apiClient) Get(id string) (*domain.Download, error) {
	var d domain.Download
	if _, err := c.do(http.MethodGet, "/api/v1/downloads/"+url.PathEscape(id), nil, &d, http.StatusOK); err != nil {
		return nil, err
	}
	return &d, nil
}

// History returns archived downloads, newest first
func (c *apiClient) History(limit int, status string) ([]domain.ArchiveRecord, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	} else {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp struct {
		Records []domain.ArchiveRecord `json:"records"`
	}
	if _, err := c.do(http.MethodGet, "/api/v1/archive?"+q.Encode(), nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// Healthy reports whether the server answers its health check
func (c *apiClient) Healthy() bool {
	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get(c.baseURL + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
