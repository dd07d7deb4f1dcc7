// Package metadata pins character images and metadata documents to IPFS through Pinata.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"persona-nft/backend/internal/models"
	"persona-nft/backend/pkg/logger"
	"persona-nft/backend/pkg/resilience"
	"persona-nft/backend/shared/observability"
)

var (
	// ErrUploadFailed means the pinning service did not accept the file
	ErrUploadFailed = errors.New("upload failed")
	// ErrImageRequired means metadata was submitted before its image was pinned
	ErrImageRequired = errors.New("metadata image uri is required")
	// ErrFetchFailed means a pinned document could not be retrieved or decoded
	ErrFetchFailed = errors.New("metadata fetch failed")
)

const maxDocumentSize = 1 << 20

// Recorder receives pinning measurements
type Recorder interface {
	Pinned(ctx context.Context, kind string, size int, elapsed time.Duration, err error)
}

// Options configures a Client
type Options struct {
	BaseURL    string
	GatewayURL string
	JWT        string
	Timeout    time.Duration
	HTTPClient *http.Client
	Breaker    *resilience.CircuitBreaker
	Recorder   Recorder
}

// Client uploads to and reads from IPFS
type Client struct {
	baseURL    string
	gatewayURL string
	jwt        string
	http       *http.Client
	breaker    *resilience.CircuitBreaker
	recorder   Recorder
	tracer     trace.Tracer
	log        *logger.Logger
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// NewClient builds a pinning client
func NewClient(opts Options, log *logger.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.pinata.cloud/pinning"
	}
	if opts.GatewayURL == "" {
		opts.GatewayURL = "https://gateway.pinata.cloud"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if log == nil {
		log = logger.Discard()
	}
	if opts.Breaker == nil {
		opts.Breaker = resilience.NewCircuitBreaker(resilience.DefaultBreakerConfig("pinata"), log)
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		gatewayURL: strings.TrimRight(opts.GatewayURL, "/"),
		jwt:        opts.JWT,
		http:       opts.HTTPClient,
		breaker:    opts.Breaker,
		recorder:   opts.Recorder,
		tracer:     observability.Tracer("persona-nft/metadata"),
		log:        log.Component("metadata"),
	}
}

// UploadImage pins image bytes and returns their gateway URI
func (c *Client) UploadImage(ctx context.Context, data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image", ErrUploadFailed)
	}
	if filename == "" {
		filename = "avatar.png"
	}
	return c.pin(ctx, "image", filename, data)
}

// UploadMetadata pins the metadata document. Its image must already be pinned.
func (c *Client) UploadMetadata(ctx context.Context, meta models.CharacterMetadata) (string, error) {
	if strings.TrimSpace(meta.Image) == "" {
		return "", ErrImageRequired
	}
	doc, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	return c.pin(ctx, "metadata", "metadata.json", doc)
}

func (c *Client) pin(ctx context.Context, kind, filename string, data []byte) (uri string, err error) {
	ctx, span := c.tracer.Start(ctx, "pinata.pinFileToIPFS", trace.WithAttributes(
		attribute.String("pin.kind", kind),
		attribute.Int("pin.size", len(data)),
	))
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if c.recorder != nil {
			c.recorder.Pinned(ctx, kind, len(data), time.Since(start), err)
		}
	}()

	if c.jwt == "" {
		return "", fmt.Errorf("%w: pinning credentials are not configured", ErrUploadFailed)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	var res pinResponse
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pinFileToIPFS", bytes.NewReader(body.Bytes()))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.jwt)
		req.Header.Set("Content-Type", mw.FormDataContentType())

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("pinata returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		}
		return json.NewDecoder(io.LimitReader(resp.Body, maxDocumentSize)).Decode(&res)
	})
	if err != nil {
		c.log.Warn("Pinning failed", "kind", kind, "error", err.Error())
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	if res.IpfsHash == "" {
		return "", fmt.Errorf("%w: response carried no IpfsHash", ErrUploadFailed)
	}

	uri = c.gatewayURL + "/ipfs/" + res.IpfsHash
	span.SetAttributes(attribute.String("pin.cid", res.IpfsHash))
	c.log.Info("Pinned to IPFS", "kind", kind, "cid", res.IpfsHash, "size", len(data))
	return uri, nil
}

// ResolveURI maps ipfs:// URIs onto the gateway; other URIs pass through
func (c *Client) ResolveURI(uri string) string {
	if cid, ok := strings.CutPrefix(uri, "ipfs://"); ok {
		return c.gatewayURL + "/ipfs/" + strings.TrimPrefix(cid, "ipfs/")
	}
	return uri
}

// FetchMetadata retrieves and decodes a pinned metadata document
func (c *Client) FetchMetadata(ctx context.Context, uri string) (*models.CharacterMetadata, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, fmt.Errorf("%w: empty token uri", ErrFetchFailed)
	}

	ctx, span := c.tracer.Start(ctx, "ipfs.fetchMetadata")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ResolveURI(uri), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: gateway returned status %d", ErrFetchFailed, resp.StatusCode)
	}

	var meta models.CharacterMetadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDocumentSize)).Decode(&meta); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return &meta, nil
}

// Ping checks that the pinning API accepts our credentials
func (c *Client) Ping(ctx context.Context) error {
	base := strings.TrimSuffix(c.baseURL, "/pinning")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/data/testAuthentication", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.jwt)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pinata authentication check returned status %d", resp.StatusCode)
	}
	return nil
}
