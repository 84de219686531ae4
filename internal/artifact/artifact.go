package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Kind distinguishes stored payload media types.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Artifact describes an immutable content-addressed payload. The ID is the
// hex SHA-256 of the payload bytes, so identical content always maps to the
// same record.
type Artifact struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Bytes     int64     `json:"bytes"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	Ext       string    `json:"ext"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// HashPayload returns the content address for a payload.
func HashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
