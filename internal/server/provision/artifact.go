package provision

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// zipEpoch is the timestamp written for packaged entries so the archive hash
// depends only on content.
var zipEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Artifact is a deployment package for the notifier function.
type Artifact struct {
	Zip []byte
	// CodeSha256 is the base64 SHA-256 of Zip, as Lambda reports it.
	CodeSha256 string
}

// NewArtifact wraps a ready zip archive.
func NewArtifact(zipBytes []byte) *Artifact {
	sum := sha256.Sum256(zipBytes)
	return &Artifact{Zip: zipBytes, CodeSha256: base64.StdEncoding.EncodeToString(sum[:])}
}

// LoadArtifact reads path. A .zip file is used as is; anything else is
// treated as the function binary and packaged as "bootstrap".
func LoadArtifact(path string) (*Artifact, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return NewArtifact(b), nil
	}
	z, err := PackageBinary(b)
	if err != nil {
		return nil, err
	}
	return NewArtifact(z), nil
}

// PackageBinary zips bin as an executable "bootstrap" entry with fixed
// metadata.
func PackageBinary(bin []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	hdr := &zip.FileHeader{
		Name:     "bootstrap",
		Method:   zip.Deflate,
		Modified: zipEpoch,
	}
	hdr.SetMode(0o755)

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return nil, fmt.Errorf("zip bootstrap: %w", err)
	}
	if _, err := w.Write(bin); err != nil {
		return nil, fmt.Errorf("zip bootstrap: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip bootstrap: %w", err)
	}
	return buf.Bytes(), nil
}
