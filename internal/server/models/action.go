package models

// Action is the operation a requester asks the permission gate to allow.
type Action string

const (
	ActionUpload   Action = "upload"
	ActionDownload Action = "download"
	ActionDelete   Action = "delete"
)
