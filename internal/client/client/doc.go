// Package client wraps the uploadvault gRPC API for command-line use. It
// attaches the access token to every call and maps status codes onto a
// small set of client errors.
package client
