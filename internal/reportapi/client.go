package reportapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"report-portal/internal/metrics"
	"report-portal/internal/model"
)

const (
	maxErrorBodyBytes = 4 << 10
	maxDownloadBytes  = 64 << 20

	itemsPath = "/api/item/getAllItems"
)

type Options struct {
	BaseURL string
	// Prefix is prepended to the report endpoints, e.g. "/api/report".
	Prefix  string
	Token   string
	Timeout time.Duration
	// HTTPClient overrides the default client. Its Jar is kept if set.
	HTTPClient *http.Client
}

// ListQuery selects one page of a student's reports.
type ListQuery struct {
	StudentEmail string
	Page         int
	Limit        int
	Filter       model.ReportFilter
	Search       string
}

type ReportPage struct {
	Reports    []model.Report       `json:"reports"`
	Pagination model.PaginationInfo `json:"pagination"`
}

// Client talks to the Remote Report API. Requests carry credentials: the
// client keeps a cookie jar for the upstream session and, when configured,
// a bearer token.
type Client struct {
	baseURL    *url.URL
	prefix     string
	token      string
	httpClient *http.Client
}

func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse report api base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("report api base URL must be http or https: %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if httpClient.Jar == nil {
		jar, jarErr := cookiejar.New(nil)
		if jarErr != nil {
			return nil, fmt.Errorf("create cookie jar: %w", jarErr)
		}
		httpClient.Jar = jar
	}

	prefix := "/" + strings.Trim(strings.TrimSpace(opts.Prefix), "/")
	if prefix == "/" {
		prefix = "/api/report"
	}

	return &Client{
		baseURL:    base,
		prefix:     prefix,
		token:      strings.TrimSpace(opts.Token),
		httpClient: httpClient,
	}, nil
}

func (c *Client) ListReports(ctx context.Context, query ListQuery) (ReportPage, error) {
	started := time.Now()
	page, err := c.listReports(ctx, query)
	metrics.ObserveUpstream("list_reports", outcomeOf(err), started)
	return page, err
}

func (c *Client) listReports(ctx context.Context, query ListQuery) (ReportPage, error) {
	params := url.Values{}
	params.Set("studentEmail", query.StudentEmail)
	params.Set("page", strconv.Itoa(query.Page))
	params.Set("limit", strconv.Itoa(query.Limit))
	if query.Filter != "" && query.Filter != model.FilterAll {
		params.Set("filter", string(query.Filter))
	}
	if search := strings.TrimSpace(query.Search); search != "" {
		params.Set("search", search)
	}

	var envelope struct {
		Success bool        `json:"success"`
		Message string      `json:"message"`
		Data    *ReportPage `json:"data"`
	}
	if err := c.getJSON(ctx, c.prefix+"/getReports", params, &envelope); err != nil {
		return ReportPage{}, err
	}
	if !envelope.Success {
		return ReportPage{}, fmt.Errorf("%w: %s", ErrReportedFailure, envelope.Message)
	}
	if envelope.Data == nil {
		return ReportPage{}, fmt.Errorf("%w: missing data", ErrInvalidResponse)
	}

	page := *envelope.Data
	if page.Reports == nil {
		page.Reports = []model.Report{}
	}
	return page, nil
}

func (c *Client) GetReport(ctx context.Context, id string) (model.ReportDetail, error) {
	started := time.Now()
	detail, err := c.getReport(ctx, id)
	metrics.ObserveUpstream("get_report", outcomeOf(err), started)
	return detail, err
}

func (c *Client) getReport(ctx context.Context, id string) (model.ReportDetail, error) {
	if !ValidReportID(id) {
		return model.ReportDetail{}, fmt.Errorf("report id %q: %w", id, model.ErrInvalidInput)
	}

	var envelope struct {
		Success bool                `json:"success"`
		Message string              `json:"message"`
		Data    *model.ReportDetail `json:"data"`
	}
	if err := c.getJSON(ctx, c.prefix+"/getReportById/"+url.PathEscape(id), nil, &envelope); err != nil {
		return model.ReportDetail{}, err
	}
	if !envelope.Success {
		return model.ReportDetail{}, fmt.Errorf("%w: %s", ErrReportedFailure, envelope.Message)
	}
	if envelope.Data == nil {
		return model.ReportDetail{}, fmt.Errorf("%w: missing data", ErrInvalidResponse)
	}
	return *envelope.Data, nil
}

// DownloadReport fetches the PDF rendition of a report.
func (c *Client) DownloadReport(ctx context.Context, id string) (model.ReportFile, error) {
	started := time.Now()
	file, err := c.downloadReport(ctx, id)
	metrics.ObserveUpstream("download_report", outcomeOf(err), started)
	return file, err
}

func (c *Client) downloadReport(ctx context.Context, id string) (model.ReportFile, error) {
	if !ValidReportID(id) {
		return model.ReportFile{}, fmt.Errorf("report id %q: %w", id, model.ErrInvalidInput)
	}

	resp, err := c.do(ctx, http.MethodGet, c.prefix+"/download/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return model.ReportFile{}, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return model.ReportFile{}, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return model.ReportFile{}, fmt.Errorf("read report download: %w", err)
	}
	if len(body) > maxDownloadBytes {
		return model.ReportFile{}, fmt.Errorf("%w: download exceeds %d bytes", ErrInvalidResponse, maxDownloadBytes)
	}
	if len(body) == 0 {
		return model.ReportFile{}, fmt.Errorf("%w: empty download", ErrInvalidResponse)
	}

	contentType := "application/pdf"
	if mediaType, _, parseErr := mime.ParseMediaType(resp.Header.Get("Content-Type")); parseErr == nil && mediaType != "application/json" {
		contentType = mediaType
	}

	return model.ReportFile{
		Filename:    ReportFilename(id),
		ContentType: contentType,
		Body:        body,
	}, nil
}

// ListItems returns the inspection item catalog. A body without an items
// array is an ErrInvalidResponse.
func (c *Client) ListItems(ctx context.Context) ([]model.CatalogItem, error) {
	started := time.Now()
	items, err := c.listItems(ctx)
	metrics.ObserveUpstream("list_items", outcomeOf(err), started)
	return items, err
}

func (c *Client) listItems(ctx context.Context) ([]model.CatalogItem, error) {
	var envelope struct {
		Success bool                `json:"success"`
		Message string              `json:"message"`
		Items   []model.CatalogItem `json:"items"`
	}
	if err := c.getJSON(ctx, itemsPath, nil, &envelope); err != nil {
		return nil, err
	}
	if !envelope.Success {
		return nil, fmt.Errorf("%w: %s", ErrReportedFailure, envelope.Message)
	}
	if envelope.Items == nil {
		return nil, fmt.Errorf("%w: missing items", ErrInvalidResponse)
	}
	return envelope.Items, nil
}

func (c *Client) SubmitReport(ctx context.Context, payload model.SubmitReportRequest) (model.SubmitReportResult, error) {
	started := time.Now()
	result, err := c.submitReport(ctx, payload)
	metrics.ObserveUpstream("submit_report", outcomeOf(err), started)
	return result, err
}

func (c *Client) submitReport(ctx context.Context, payload model.SubmitReportRequest) (model.SubmitReportResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return model.SubmitReportResult{}, fmt.Errorf("marshal submit payload: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.prefix+"/submit", nil, bytes.NewReader(body))
	if err != nil {
		return model.SubmitReportResult{}, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return model.SubmitReportResult{}, err
	}

	var result model.SubmitReportResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return model.SubmitReportResult{}, fmt.Errorf("%w: decode submit response: %v", ErrInvalidResponse, err)
	}
	if !result.Success {
		return result, fmt.Errorf("%w: %s", ErrReportedFailure, result.Message)
	}
	return result, nil
}

// ValidReportID reports whether id can be used as a single path segment
// of a report URL.
func ValidReportID(id string) bool {
	return id != "" && id != "." && id != ".."
}

// ReportFilename is the attachment name a downloaded report is saved under.
func ReportFilename(id string) string {
	return "report-" + id + ".pdf"
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrInvalidResponse, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method string, path string, params url.Values, body io.Reader) (*http.Response, error) {
	target := c.baseURL.JoinPath(path)
	if len(params) > 0 {
		target.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
		return ErrNotFound
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
}

func errorMessage(raw []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if text, ok := parsed.Error.(string); ok {
			return text
		}
	}
	return strings.TrimSpace(string(raw))
}

// IsCanceled reports whether err came from a canceled or superseded request.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
