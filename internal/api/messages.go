// Package api defines the RPC surface shared by the server and the client:
// request and response messages, the JSON wire codec, the service descriptor
// and a client stub.
package api

import (
	"encoding/json"
	"time"
)

// TokenMetadataKey carries the access token in request metadata.
const TokenMetadataKey = "access_token"

type FileMetadata struct {
	ID        string          `json:"id"`
	Filename  string          `json:"filename"`
	SizeBytes int64           `json:"size_bytes"`
	MimeType  string          `json:"mime_type"`
	Status    string          `json:"status"`
	ETag      string          `json:"etag,omitempty"`
	OwnerID   string          `json:"owner_id,omitempty"`
	Meta      json.RawMessage `json:"meta,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type IssueUploadIntentRequest struct {
	Filename  string          `json:"filename"`
	SizeBytes int64           `json:"size_bytes"`
	MimeType  string          `json:"mime_type"`
	Meta      json.RawMessage `json:"meta,omitempty"`
	Context   json.RawMessage `json:"context,omitempty"`
}

type IssueUploadIntentResponse struct {
	FileID string `json:"file_id"`
	URL    string `json:"url"`
}

type ConfirmUploadRequest struct {
	FileID string `json:"file_id"`
}

type ConfirmUploadResponse struct {
	File *FileMetadata `json:"file"`
}

type GetMetadataRequest struct {
	FileID  string          `json:"file_id"`
	Context json.RawMessage `json:"context,omitempty"`
}

type GetMetadataResponse struct {
	File *FileMetadata `json:"file"`
}

type IssueDownloadURLRequest struct {
	FileID  string          `json:"file_id"`
	Context json.RawMessage `json:"context,omitempty"`
}

type IssueDownloadURLResponse struct {
	URL string `json:"url"`
}

type RemoveFileRequest struct {
	FileID  string          `json:"file_id"`
	Context json.RawMessage `json:"context,omitempty"`
}

type RemoveFileResponse struct{}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}
