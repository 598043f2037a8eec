// Package client is the dashboard-facing data access layer: a typed wrapper
// over the gateway's REST surface. All reads and writes go through the
// gateway; there is no direct database path.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/clepfinder/backend/internal/models"
)

// Client calls the gateway API. The bearer token identifies the session and
// is injected per client rather than read from process-wide state, so tests
// can substitute fake identities.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// APIError carries the gateway's status code and error message.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (c *Client) ListColleges(ctx context.Context, ownerID string) ([]models.College, error) {
	path := "/api/colleges"
	if ownerID != "" {
		path += "?owner=" + url.QueryEscape(ownerID)
	}
	var out []models.College
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateCollege(ctx context.Context, req *models.CreateCollegeRequest) (*models.College, error) {
	var out models.College
	if err := c.do(ctx, http.MethodPost, "/api/colleges", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetCollege(ctx context.Context, collegeID string) (*models.College, error) {
	var out models.College
	if err := c.do(ctx, http.MethodGet, "/api/colleges/"+url.PathEscape(collegeID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateCollege(ctx context.Context, collegeID string, req *models.UpdateCollegeRequest) (*models.College, error) {
	var out models.College
	if err := c.do(ctx, http.MethodPatch, "/api/colleges/"+url.PathEscape(collegeID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteCollege(ctx context.Context, collegeID string) error {
	return c.do(ctx, http.MethodDelete, "/api/colleges/"+url.PathEscape(collegeID), nil, nil)
}

func (c *Client) ListExams(ctx context.Context, collegeID string) ([]models.Exam, error) {
	var out []models.Exam
	if err := c.do(ctx, http.MethodGet, c.examsPath(collegeID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateExam(ctx context.Context, collegeID string, req *models.CreateExamRequest) (*models.Exam, error) {
	var out models.Exam
	if err := c.do(ctx, http.MethodPost, c.examsPath(collegeID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateExam(ctx context.Context, collegeID, examID string, req *models.UpdateExamRequest) (*models.Exam, error) {
	var out models.Exam
	if err := c.do(ctx, http.MethodPatch, c.examPath(collegeID, examID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteExam(ctx context.Context, collegeID, examID string) error {
	return c.do(ctx, http.MethodDelete, c.examPath(collegeID, examID), nil, nil)
}

func (c *Client) SubmitFlag(ctx context.Context, collegeID, examID string, req *models.CreateFlagRequest) (*models.FlagResult, error) {
	var out models.FlagResult
	if err := c.do(ctx, http.MethodPost, c.examPath(collegeID, examID)+"/flags", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListFlags(ctx context.Context, collegeID, examID string, limit int) ([]models.Flag, error) {
	path := c.examPath(collegeID, examID) + "/flags"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []models.Flag
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteFlag(ctx context.Context, collegeID, examID, flagID string) error {
	return c.do(ctx, http.MethodDelete, c.examPath(collegeID, examID)+"/flags/"+url.PathEscape(flagID), nil, nil)
}

func (c *Client) examsPath(collegeID string) string {
	return "/api/colleges/" + url.PathEscape(collegeID) + "/exams"
}

func (c *Client) examPath(collegeID, examID string) string {
	return c.examsPath(collegeID) + "/" + url.PathEscape(examID)
}

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Errors  map[string]string `json:"errors"`
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decoding response (http %d): %w", resp.StatusCode, err)
	}

	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg, Fields: env.Errors}
	}

	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}
