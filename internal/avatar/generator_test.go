package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-nft/backend/pkg/logger"
)

func TestGenerateCharacterAvatar(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG-generated"))
	}))
	defer srv.Close()

	g := NewGenerator(srv.URL, time.Second, logger.Discard())
	a := g.GenerateCharacterAvatar(context.Background(), "a wise sorceress")

	assert.False(t, a.Placeholder)
	assert.Equal(t, []byte("\x89PNG-generated"), a.Data)
	assert.Equal(t, "a wise sorceress", got["description"])
	assert.Contains(t, got["prompt"], "High-quality digital art portrait of a wise sorceress")
}

func TestGenerateCharacterAvatar_FallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	for name, g := range map[string]*Generator{
		"upstream error": NewGenerator(srv.URL, time.Second, logger.Discard()),
		"not configured": NewGenerator("", time.Second, nil),
	} {
		t.Run(name, func(t *testing.T) {
			a := g.GenerateCharacterAvatar(context.Background(), "")
			assert.True(t, a.Placeholder)
			assert.Equal(t, "image/png", a.ContentType)
			assert.Equal(t, Placeholder(), a.Data)
		})
	}
}

func TestPlaceholder_IsPurpleSquare(t *testing.T) {
	img, err := png.Decode(bytes.NewReader(Placeholder()))
	require.NoError(t, err)

	assert.Equal(t, 512, img.Bounds().Dx())
	assert.Equal(t, 512, img.Bounds().Dy())

	r, g, b, a := img.At(10, 10).RGBA()
	want := color.RGBA{R: 128, B: 128, A: 255}
	wr, wg, wb, wa := want.RGBA()
	assert.Equal(t, []uint32{wr, wg, wb, wa}, []uint32{r, g, b, a})
}

func TestPlaceholder_ReturnsCopy(t *testing.T) {
	first := Placeholder()
	want := bytes.Clone(first)
	for i := range first {
		first[i] = 0
	}
	assert.Equal(t, want, Placeholder())
}
