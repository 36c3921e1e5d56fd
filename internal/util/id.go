package util

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/gosimple/slug"
)

func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// CategoryID derives a readable id from a category name, suffixed with random
// hex so two categories with the same name never collide.
func CategoryID(name string) string {
	base := slug.Make(name)
	if base == "" {
		base = "category"
	}
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return base + "-" + hex.EncodeToString(suffix)
}
