// Package models defines server-side data models persisted by the ledger
// and the bucket registry.
package models

import (
	"encoding/json"
	"time"
)

// FileStatus is the upload lifecycle state of a FileRecord.
type FileStatus string

const (
	// StatusPending is the initial state, entered when an upload URL is issued.
	StatusPending FileStatus = "pending"
	// StatusUploading is reserved for transports that report progress. The
	// confirmation flow never writes it.
	StatusUploading FileStatus = "uploading"
	// StatusUploaded means the object was found in the store.
	StatusUploaded FileStatus = "uploaded"
	// StatusError means confirmation hit an unrecoverable condition.
	StatusError FileStatus = "error"
)

// Terminal reports whether s ends the confirmation flow.
func (s FileStatus) Terminal() bool {
	return s == StatusUploaded || s == StatusError
}

// Valid reports whether s is a known status.
func (s FileStatus) Valid() bool {
	switch s {
	case StatusPending, StatusUploading, StatusUploaded, StatusError:
		return true
	}
	return false
}

// FileRecord is the ledger entry for one upload attempt.
type FileRecord struct {
	// ID is generated at creation and never changes.
	ID string
	// Filename, SizeBytes and MimeType are declared by the client and are
	// untrusted until the upload is confirmed.
	Filename  string
	SizeBytes int64
	MimeType  string
	// Key is the object key under uploads/. Unique within the ledger.
	Key string
	// Bucket is the owning bucket name.
	Bucket string
	Status FileStatus
	// ETag is set on the transition to uploaded.
	ETag string
	// OwnerID is the requester that asked for the upload, if any.
	OwnerID string
	// Meta is an opaque caller attachment, passed through unmodified.
	Meta      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy of r.
func (r *FileRecord) Clone() *FileRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Meta != nil {
		c.Meta = append(json.RawMessage(nil), r.Meta...)
	}
	return &c
}

// FileMetadata is the projection of a FileRecord returned to callers. It
// omits the object key and bucket.
type FileMetadata struct {
	ID        string
	Filename  string
	SizeBytes int64
	MimeType  string
	Status    FileStatus
	ETag      string
	OwnerID   string
	Meta      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Metadata projects r for callers.
func (r *FileRecord) Metadata() *FileMetadata {
	return &FileMetadata{
		ID:        r.ID,
		Filename:  r.Filename,
		SizeBytes: r.SizeBytes,
		MimeType:  r.MimeType,
		Status:    r.Status,
		ETag:      r.ETag,
		OwnerID:   r.OwnerID,
		Meta:      r.Meta,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// UploadTask tells the client where to PUT the file bytes.
type UploadTask struct {
	FileID string
	URL    string
}
