package cascade

import (
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

// Artifact is an immutable blob of image bytes plus its display name.
type Artifact struct {
	Name   string
	Path   string
	Digest string
	data   []byte
}

// NewArtifact copies data and computes its BLAKE3 digest.
func NewArtifact(name string, data []byte) Artifact {
	buf := make([]byte, len(data))
	copy(buf, data)
	sum := blake3.Sum256(buf)
	return Artifact{
		Name:   strings.TrimSpace(name),
		Digest: hex.EncodeToString(sum[:]),
		data:   buf,
	}
}

// WithPath returns a copy of the artifact that remembers where it was read from.
func (a Artifact) WithPath(path string) Artifact {
	a.Path = path
	return a
}

// Size reports the artifact length in bytes.
func (a Artifact) Size() int64 {
	return int64(len(a.data))
}

// Bytes returns the artifact contents. Callers must not modify the slice.
func (a Artifact) Bytes() []byte {
	return a.data
}

// Empty reports whether the artifact carries no data.
func (a Artifact) Empty() bool {
	return len(a.data) == 0
}

// Extension returns the lower-case extension without the dot, or "".
func (a Artifact) Extension() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(a.Name)), ".")
}
