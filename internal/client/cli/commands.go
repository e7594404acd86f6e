package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/uploadvault/internal/client/client"
	"github.com/dmitrijs2005/uploadvault/internal/filex"
	"github.com/dmitrijs2005/uploadvault/internal/netx"
)

func (a *App) info(ctx context.Context, id string) error {
	meta, err := a.api.GetMetadata(ctx, id)
	if err != nil {
		return err
	}
	a.printFile(meta)
	return nil
}

func (a *App) download(ctx context.Context, id, dest string) error {
	url, err := a.api.IssueDownloadURL(ctx, id)
	if err != nil {
		return err
	}

	var n int64
	err = filex.WriteAtomic(dest, func(w io.Writer) error {
		var err error
		n, err = netx.DownloadFromPresignedURL(ctx, a.httpClient, url, w)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "saved %s (%d bytes)\n", dest, n)
	return nil
}

func (a *App) remove(ctx context.Context, id string) error {
	if err := a.api.RemoveFile(ctx, id); err != nil {
		return err
	}
	a.remember(func(h uploadHistory) error { return h.Forget(ctx, id) })
	fmt.Fprintf(a.out, "removed %s\n", id)
	return nil
}

func (a *App) list(ctx context.Context) error {
	if a.history == nil {
		return ErrNoHistory
	}
	entries, err := a.history.List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tSIZE\tNAME\tUPLOADED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", e.FileID, e.Status, e.SizeBytes, e.Filename, e.CreatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

// refresh asks the server for the status of every unfinished upload.
func (a *App) refresh(ctx context.Context) error {
	if a.history == nil {
		return ErrNoHistory
	}
	n, err := a.history.Refresh(ctx, func(ctx context.Context, id string) (string, bool, error) {
		meta, err := a.api.GetMetadata(ctx, id)
		if errors.Is(err, client.ErrNotFound) {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		return meta.Status, true, nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d updated\n", n)
	return nil
}
