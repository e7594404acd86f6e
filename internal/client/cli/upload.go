package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/uploadvault/internal/api"
	"github.com/dmitrijs2005/uploadvault/internal/client/client"
	"github.com/dmitrijs2005/uploadvault/internal/client/history"
	"github.com/dmitrijs2005/uploadvault/internal/netx"
	"github.com/sethvargo/go-retry"
)

// detectMimeType prefers the extension and falls back to sniffing the first
// 512 bytes. r is rewound afterwards.
func detectMimeType(path string, r io.ReadSeeker) (string, error) {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t, nil
	}

	buf := make([]byte, 512)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}

func (a *App) upload(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	mimeType, err := detectMimeType(path, f)
	if err != nil {
		return fmt.Errorf("detect mime type: %w", err)
	}

	req := client.UploadRequest{
		Filename:  filepath.Base(path),
		SizeBytes: st.Size(),
		MimeType:  mimeType,
	}
	id, url, err := a.api.IssueUploadIntent(ctx, req)
	if err != nil {
		return err
	}

	localPath, err := filepath.Abs(path)
	if err != nil {
		localPath = path
	}
	a.remember(func(h uploadHistory) error {
		return h.Record(ctx, history.Entry{
			FileID:    id,
			Filename:  req.Filename,
			SizeBytes: req.SizeBytes,
			MimeType:  req.MimeType,
			LocalPath: localPath,
			Status:    "pending",
		})
	})

	if err := netx.UploadToPresignedURL(ctx, a.httpClient, url, f, st.Size(), mimeType); err != nil {
		return fmt.Errorf("file %s: %w", id, err)
	}

	return a.confirm(ctx, id)
}

// confirm retries while the server cannot see the object yet.
func (a *App) confirm(ctx context.Context, id string) error {
	var meta *api.FileMetadata
	err := retry.Do(ctx, a.backoff(), func(ctx context.Context) error {
		var err error
		meta, err = a.api.ConfirmUpload(ctx, id)
		if err != nil {
			if errors.Is(err, client.ErrNotFound) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("confirm %s: %w", id, err)
	}

	a.remember(func(h uploadHistory) error { return h.SetStatus(ctx, id, meta.Status) })
	a.printFile(meta)
	return nil
}
