package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"simpleweb3/internal/logger"
	"simpleweb3/internal/model"
	"simpleweb3/internal/service"

	"github.com/go-resty/resty/v2"
	"github.com/r3labs/sse/v2"
)

// ExportTimeout covers the warehouse job timeout plus a buffer
const ExportTimeout = 310 * time.Second

// APIError is a non-2xx response from the server
type APIError struct {
	Status  int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%d: %s: %s", e.Status, e.Message, e.Detail)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// Download is a CSV file returned by the export endpoint
type Download struct {
	Filename string
	CSV      []byte
}

// Client talks to a running simpleweb3 server
type Client struct {
	client  *resty.Client
	baseURL string
	logger  logger.Logger
}

func New(baseURL string, l logger.Logger) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(ExportTimeout)
	return &Client{
		client:  client,
		baseURL: baseURL,
		logger:  l,
	}
}

// DownloadExport requests the validator CSV for req.
func (c *Client) DownloadExport(ctx context.Context, req model.QueryRequest) (*Download, error) {
	c.logger.Info("Sending request", logger.Fields{"url": c.baseURL + "/api/solana-validator"})

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/api/solana-validator")
	if err != nil {
		return nil, fmt.Errorf("error requesting export: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, parseError(resp)
	}

	var filename string
	if _, params, err := mime.ParseMediaType(resp.Header().Get("Content-Disposition")); err == nil {
		filename = params["filename"]
	}

	return &Download{Filename: attachmentName(filename, req), CSV: resp.Body()}, nil
}

// attachmentName reduces a server supplied filename to its last path element
// so a download never lands outside the working directory.
func attachmentName(name string, req model.QueryRequest) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	switch name {
	case ".", "..", "/", "":
		return service.ExportFilename(req.StartDate, req.EndDate)
	}
	return name
}

// Fees returns the server's current fee snapshot.
func (c *Client) Fees(ctx context.Context) (*model.FeeSnapshot, error) {
	var snap model.FeeSnapshot
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&snap).
		Get("/api/gas/fees")
	if err != nil {
		return nil, fmt.Errorf("error requesting fees: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, parseError(resp)
	}
	return &snap, nil
}

// WatchFees subscribes to the fee stream and calls fn for every snapshot until ctx is done.
func (c *Client) WatchFees(ctx context.Context, fn func(model.FeeSnapshot)) error {
	client := sse.NewClient(c.baseURL + "/api/gas/stream")

	err := client.SubscribeRawWithContext(ctx, func(msg *sse.Event) {
		if len(msg.Data) == 0 {
			return
		}
		var snap model.FeeSnapshot
		if err := json.Unmarshal(msg.Data, &snap); err != nil {
			c.logger.Warn("error unmarshaling fee snapshot", err)
			return
		}
		fn(snap)
	})
	if err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return fmt.Errorf("fee stream: %w", err)
	}
	return nil
}

func parseError(resp *resty.Response) error {
	apiErr := &APIError{Status: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Detail = body.Message
	}
	return apiErr
}
