package partition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Environment variable names for the partition backend.
const (
	EnvPartitionAPIURL  = "DOCUVISION_PARTITION_API_URL" // e.g. "https://api.unstructuredapp.io"
	EnvPartitionAPIKey  = "DOCUVISION_PARTITION_API_KEY" // optional, sent as unstructured-api-key
	EnvPartitionTimeout = "DOCUVISION_PARTITION_TIMEOUT" // request timeout in seconds (default: 300)
)

// DefaultTimeout is the default partition request timeout in seconds. Layout
// analysis of a large document is slow, so this is generous.
const DefaultTimeout = 300

const partitionEndpoint = "/general/v0/general"

// Client is the production Partitioner. It uploads the PDF to an
// Unstructured-compatible partition endpoint and decodes the element list
// from the response. The backend runs the hi_res strategy with table
// structure inference so that table elements carry an HTML rendering and all
// elements carry raster-space coordinates.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient builds a partition client from the environment. The API URL is
// required; the key is optional for self-hosted backends.
func NewClient(logger *logrus.Logger) (*Client, error) {
	baseURL := os.Getenv(EnvPartitionAPIURL)
	if baseURL == "" {
		return nil, fmt.Errorf("partition backend not configured: %s is required", EnvPartitionAPIURL)
	}

	timeout := DefaultTimeout
	if v := os.Getenv(EnvPartitionTimeout); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			timeout = secs
		}
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     os.Getenv(EnvPartitionAPIKey),
		httpClient: &http.Client{Timeout: time.Duration(timeout) * time.Second},
		logger:     logger,
	}, nil
}

// wireElement mirrors the JSON shape produced by the partition backend.
type wireElement struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Metadata struct {
		PageNumber  int `json:"page_number"`
		Coordinates struct {
			Points [][]float64 `json:"points"`
		} `json:"coordinates"`
		TextAsHTML string `json:"text_as_html"`
	} `json:"metadata"`
}

// Partition uploads the PDF and returns the decoded element sequence in
// backend order.
func (c *Client) Partition(ctx context.Context, pdfPath string) ([]Element, error) {
	body, contentType, err := buildPartitionRequest(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build partition request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+partitionEndpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create partition request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("unstructured-api-key", c.apiKey)
	}

	c.logger.WithFields(logrus.Fields{
		"file":    filepath.Base(pdfPath),
		"backend": c.baseURL,
	}).Info("Partitioning document")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("partition request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("partition backend returned status %d: %s", resp.StatusCode, string(detail))
	}

	var wire []wireElement
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode partition response: %w", err)
	}

	elements := make([]Element, 0, len(wire))
	for _, w := range wire {
		el := Element{
			Type:       ElementType(w.Type),
			PageNumber: w.Metadata.PageNumber,
			Text:       w.Text,
			TableHTML:  w.Metadata.TextAsHTML,
		}
		if el.PageNumber < 1 {
			el.PageNumber = 1
		}
		for _, pt := range w.Metadata.Coordinates.Points {
			if len(pt) >= 2 {
				el.Coordinates = append(el.Coordinates, Point{X: pt[0], Y: pt[1]})
			}
		}
		elements = append(elements, el)
	}

	c.logger.WithField("elements", len(elements)).Info("Partitioning complete")
	return elements, nil
}

// buildPartitionRequest assembles the multipart form: the PDF itself plus the
// strategy flags the pipeline relies on (hi_res layout model with table
// structure inference and coordinates enabled).
func buildPartitionRequest(pdfPath string) (io.Reader, string, error) {
	file, err := os.Open(pdfPath)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = file.Close() }()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("files", filepath.Base(pdfPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", err
	}

	fields := map[string]string{
		"strategy":                  "hi_res",
		"hi_res_model_name":         "yolox",
		"pdf_infer_table_structure": "true",
		"coordinates":               "true",
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}
