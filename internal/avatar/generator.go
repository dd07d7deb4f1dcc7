// Package avatar renders character portraits through the avatar generation API.
package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"persona-nft/backend/pkg/logger"
)

const (
	defaultDescription = "NFT Character"
	placeholderSize    = 512
	maxImageSize       = 10 << 20
)

// Avatar is a rendered portrait
type Avatar struct {
	Data        []byte
	ContentType string
	// Placeholder is set when generation failed and a solid fill was returned instead
	Placeholder bool
}

// Generator calls the avatar API. It holds no per-request state.
type Generator struct {
	apiURL string
	http   *http.Client
	log    *logger.Logger
}

// NewGenerator creates a generator; an empty apiURL always yields the placeholder
func NewGenerator(apiURL string, timeout time.Duration, log *logger.Logger) *Generator {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Generator{
		apiURL: apiURL,
		http:   &http.Client{Timeout: timeout},
		log:    log.Component("avatar"),
	}
}

// EnhancedPrompt expands a character description into an image prompt
func EnhancedPrompt(description string) string {
	return fmt.Sprintf("High-quality digital art portrait of %s, fantasy character, detailed face, "+
		"expressive eyes, professional artwork, 8k resolution, trending on artstation", description)
}

// GenerateCharacterAvatar renders a portrait for description. It never fails:
// any upstream problem yields the placeholder image.
func (g *Generator) GenerateCharacterAvatar(ctx context.Context, description string) Avatar {
	description = strings.TrimSpace(description)
	if description == "" {
		description = defaultDescription
	}

	data, contentType, err := g.request(ctx, description)
	if err != nil {
		g.log.Warn("Avatar generation failed, using placeholder", "error", err.Error())
		return Avatar{Data: Placeholder(), ContentType: "image/png", Placeholder: true}
	}
	return Avatar{Data: data, ContentType: contentType}
}

func (g *Generator) request(ctx context.Context, description string) ([]byte, string, error) {
	if g.apiURL == "" {
		return nil, "", fmt.Errorf("avatar api is not configured")
	}

	payload, err := json.Marshal(map[string]string{
		"description": description,
		"prompt":      EnhancedPrompt(description),
	})
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("avatar api returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("avatar api returned %q instead of an image", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 || len(data) > maxImageSize {
		return nil, "", fmt.Errorf("avatar image size %d out of range", len(data))
	}

	g.log.Info("Avatar generated", "bytes", len(data), "latency_ms", time.Since(start).Milliseconds())
	return data, contentType, nil
}

var (
	placeholderOnce sync.Once
	placeholderPNG  []byte
)

// Placeholder returns a solid purple 512x512 PNG
func Placeholder() []byte {
	placeholderOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, placeholderSize, placeholderSize))
		draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 128, B: 128, A: 255}}, image.Point{}, draw.Src)

		var buf bytes.Buffer
		_ = png.Encode(&buf, img)
		placeholderPNG = buf.Bytes()
	})
	return bytes.Clone(placeholderPNG)
}
