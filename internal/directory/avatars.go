package directory

import (
	"strings"

	"persona-nft/backend/internal/models"
)

// CuratedAvatars maps a lower-cased character name to a fixed avatar URI.
// A match replaces whatever avatar the pinned metadata points at.
type CuratedAvatars map[string]string

// DefaultAvatars returns the built-in curated avatars, served under baseURL
func DefaultAvatars(baseURL string) CuratedAvatars {
	base := strings.TrimRight(baseURL, "/")
	return CuratedAvatars{
		"dog":    base + "/images/dog.png",
		"luffy":  base + "/images/luffy.png",
		"zoro":   base + "/images/zoro.png",
		"itachi": base + "/images/itachi.png",
		"elon":   base + "/images/Elon.png",
	}
}

func (a CuratedAvatars) apply(c *models.Character) {
	if uri, ok := a[strings.ToLower(strings.TrimSpace(c.Name))]; ok && uri != "" {
		c.AvatarURI = uri
	}
}
