package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/uploadvault/internal/common"
	"github.com/dmitrijs2005/uploadvault/internal/logging"
	"github.com/dmitrijs2005/uploadvault/internal/server/metrics"
	"github.com/dmitrijs2005/uploadvault/internal/server/models"
	"github.com/dmitrijs2005/uploadvault/internal/server/objectstore"
	"github.com/dmitrijs2005/uploadvault/internal/server/permissions"
	"github.com/dmitrijs2005/uploadvault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// KeyPrefix is prepended to every object key the service hands out.
const KeyPrefix = "uploads/"

const defaultMimeType = "application/octet-stream"

// ObjectStore is the part of the object store used by FileService.
type ObjectStore interface {
	HeadObject(ctx context.Context, bucket, key string) (*objectstore.ObjectInfo, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	PresignedURL(ctx context.Context, in objectstore.PresignInput) (string, error)
}

// Hook observes a file record at a lifecycle point.
type Hook func(ctx context.Context, file *models.FileRecord) error

// KeyFunc names the object for a new record. The record has its ID and the
// declared fields set. The result is placed under KeyPrefix if it is not
// already.
type KeyFunc func(file *models.FileRecord) string

// FileServiceOptions are captured once at construction.
type FileServiceOptions struct {
	Bucket string
	Store  ObjectStore
	Gate   *permissions.Gate

	BeforeUpload Hook
	AfterUpload  Hook
	KeyFunc      KeyFunc

	UploadExpiresIn   time.Duration
	DownloadExpiresIn time.Duration

	// AutoConfirm marks records uploaded as soon as the PUT URL is issued
	// and runs AfterUpload for them. The record keeps an empty etag.
	// Intended for local development without a notification path.
	AutoConfirm bool
	// EnforceDeclaredSize moves a record to error when the stored object
	// length differs from the declared size.
	EnforceDeclaredSize bool

	Logger  logging.Logger
	Metrics *metrics.Metrics
}

// UploadIntent is the request to issueUploadIntent.
type UploadIntent struct {
	Filename    string
	SizeBytes   int64
	MimeType    string
	Meta        json.RawMessage
	RequesterID string
	Context     json.RawMessage
}

// FileService owns the ledger state machine.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	opts        FileServiceOptions
	logger      logging.Logger
	now         func() time.Time
	newID       func() string
}

func NewFileService(db *sql.DB, m repomanager.RepositoryManager, opts FileServiceOptions) *FileService {
	if opts.KeyFunc == nil {
		opts.KeyFunc = DefaultKey
	}
	if opts.Gate == nil {
		opts.Gate = permissions.NewGate(nil, false)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &FileService{
		db:          db,
		repomanager: m,
		opts:        opts,
		logger:      logger.With("module", "files"),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// DefaultKey returns "<id>-<sanitized filename>".
func DefaultKey(file *models.FileRecord) string {
	return file.ID + "-" + sanitizeFilename(file.Filename)
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}

func withPrefix(key string) string {
	key = strings.TrimLeft(key, "/")
	if strings.HasPrefix(key, KeyPrefix) {
		return key
	}
	return KeyPrefix + key
}

func validateIntent(in UploadIntent) error {
	if strings.TrimSpace(in.Filename) == "" {
		return fmt.Errorf("%w: filename is required", common.ErrInvalidInput)
	}
	if in.SizeBytes < 0 {
		return fmt.Errorf("%w: size must not be negative", common.ErrInvalidInput)
	}
	if len(in.Meta) > 0 && !json.Valid(in.Meta) {
		return fmt.Errorf("%w: meta is not valid JSON", common.ErrInvalidInput)
	}
	return nil
}

// IssueUploadIntent authorizes the upload, persists a pending record, runs
// the before-upload hook and returns a presigned PUT URL for the record key.
// A failing hook leaves the pending record in place.
func (s *FileService) IssueUploadIntent(ctx context.Context, in UploadIntent) (*models.UploadTask, error) {
	if err := validateIntent(in); err != nil {
		return nil, err
	}
	mimeType := in.MimeType
	if mimeType == "" {
		mimeType = defaultMimeType
	}

	summary := &models.FileRecord{
		Filename:  in.Filename,
		SizeBytes: in.SizeBytes,
		MimeType:  mimeType,
		Meta:      in.Meta,
	}
	if err := s.opts.Gate.Authorize(ctx, summary, models.ActionUpload, in.RequesterID, in.Context); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	file := summary.Clone()
	file.ID = s.newID()
	file.Bucket = s.opts.Bucket
	file.Status = models.StatusPending
	file.OwnerID = in.RequesterID
	file.CreatedAt = now
	file.UpdatedAt = now
	file.Key = withPrefix(s.opts.KeyFunc(file.Clone()))
	if file.Key == KeyPrefix {
		return nil, fmt.Errorf("%w: empty object key", common.ErrInvalidInput)
	}

	repo := s.repomanager.Files(s.db)
	if err := repo.Create(ctx, file); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			// only a KeyFunc that repeats keys gets here; ids are random
			return nil, fmt.Errorf("%w: object key %s is already in use", common.ErrInvalidInput, file.Key)
		}
		return nil, fmt.Errorf("error creating file record: %w", err)
	}

	if s.opts.BeforeUpload != nil {
		if err := s.opts.BeforeUpload(ctx, file.Clone()); err != nil {
			return nil, fmt.Errorf("before upload hook: %w", err)
		}
	}

	url, err := s.opts.Store.PresignedURL(ctx, objectstore.PresignInput{
		Bucket:    file.Bucket,
		Key:       file.Key,
		Operation: objectstore.OpPut,
		Expires:   s.opts.UploadExpiresIn,
	})
	if err != nil {
		return nil, err
	}

	if s.opts.AutoConfirm {
		updated, applied, err := repo.Transition(ctx, file.ID, models.StatusPending, models.StatusUploaded, "", s.now().UTC())
		if err != nil {
			return nil, fmt.Errorf("error auto-confirming file: %w", err)
		}
		if applied {
			s.afterUpload(ctx, updated)
		}
	}

	s.opts.Metrics.UploadIntent()
	s.logger.Debug(ctx, "upload intent issued", "file_id", file.ID, "key", file.Key, "owner", file.OwnerID)

	return &models.UploadTask{FileID: file.ID, URL: url}, nil
}

// ConfirmUpload moves a pending record to uploaded once the object is
// visible in the store. A record that is already terminal is returned as is
// and no hook runs. An object that is not yet visible fails with
// common.ErrNotFound and leaves the record pending.
func (s *FileService) ConfirmUpload(ctx context.Context, id string) (*models.FileRecord, error) {
	repo := s.repomanager.Files(s.db)

	file, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if file.Status.Terminal() {
		s.opts.Metrics.Confirmation(metrics.ResultAlreadyTerminal)
		return file, nil
	}

	info, err := s.opts.Store.HeadObject(ctx, file.Bucket, file.Key)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.opts.Metrics.Confirmation(metrics.ResultNotVisible)
		} else {
			s.opts.Metrics.Confirmation(metrics.ResultError)
		}
		return nil, err
	}

	if s.opts.EnforceDeclaredSize && info.Size != file.SizeBytes {
		s.logger.Warn(ctx, "stored object size differs from declared size",
			"file_id", file.ID, "declared", file.SizeBytes, "stored", info.Size)
		updated, applied, err := repo.Transition(ctx, file.ID, models.StatusPending, models.StatusError, "", s.now().UTC())
		if err != nil {
			return nil, err
		}
		if !applied {
			return s.current(ctx, id)
		}
		s.opts.Metrics.Confirmation(metrics.ResultError)
		return updated, nil
	}

	updated, applied, err := repo.Transition(ctx, file.ID, models.StatusPending, models.StatusUploaded, info.ETag, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost the race to a concurrent confirmation.
		return s.current(ctx, id)
	}

	s.afterUpload(ctx, file)

	s.opts.Metrics.Confirmation(metrics.ResultUploaded)
	s.logger.Info(ctx, "upload confirmed", "file_id", file.ID, "etag", info.ETag)
	return updated, nil
}

// afterUpload runs the after-upload hook for a record that just moved to
// uploaded. Hook errors are logged and never revert the transition.
func (s *FileService) afterUpload(ctx context.Context, file *models.FileRecord) {
	if s.opts.AfterUpload == nil {
		return
	}
	if err := s.opts.AfterUpload(ctx, file.Clone()); err != nil {
		s.logger.Error(ctx, "after upload hook failed", "file_id", file.ID, "error", err)
	}
}

func (s *FileService) current(ctx context.Context, id string) (*models.FileRecord, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.opts.Metrics.Confirmation(metrics.ResultAlreadyTerminal)
	return file, nil
}

// FileIDForKey returns the id of the record owning key.
func (s *FileService) FileIDForKey(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: key is required", common.ErrInvalidInput)
	}
	file, err := s.repomanager.Files(s.db).GetByKey(ctx, key)
	if err != nil {
		return "", err
	}
	return file.ID, nil
}

// ConfirmUploadByKey resolves the record by object key and confirms it.
func (s *FileService) ConfirmUploadByKey(ctx context.Context, key string) (*models.FileRecord, error) {
	id, err := s.FileIDForKey(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.ConfirmUpload(ctx, id)
}

func (s *FileService) load(ctx context.Context, id string, action models.Action, requesterID string, reqCtx json.RawMessage) (*models.FileRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: file id is required", common.ErrInvalidInput)
	}
	file, err := s.repomanager.Files(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.opts.Gate.Authorize(ctx, file, action, requesterID, reqCtx); err != nil {
		return nil, err
	}
	return file, nil
}

// GetMetadata returns the caller-facing projection of the record.
func (s *FileService) GetMetadata(ctx context.Context, id, requesterID string, reqCtx json.RawMessage) (*models.FileMetadata, error) {
	file, err := s.load(ctx, id, models.ActionDownload, requesterID, reqCtx)
	if err != nil {
		return nil, err
	}
	return file.Metadata(), nil
}

// IssueDownloadURL returns a presigned GET URL for an uploaded record.
func (s *FileService) IssueDownloadURL(ctx context.Context, id, requesterID string, reqCtx json.RawMessage) (string, error) {
	file, err := s.load(ctx, id, models.ActionDownload, requesterID, reqCtx)
	if err != nil {
		return "", err
	}
	if file.Status != models.StatusUploaded {
		return "", fmt.Errorf("%w: file %s is %s", common.ErrFileNotReady, file.ID, file.Status)
	}

	return s.opts.Store.PresignedURL(ctx, objectstore.PresignInput{
		Bucket:             file.Bucket,
		Key:                file.Key,
		Operation:          objectstore.OpGet,
		Expires:            s.opts.DownloadExpiresIn,
		ContentDisposition: mime.FormatMediaType("attachment", map[string]string{"filename": file.Filename}),
	})
}

// RemoveFile deletes the object and then the record. When the object cannot
// be deleted the record is left untouched.
func (s *FileService) RemoveFile(ctx context.Context, id, requesterID string, reqCtx json.RawMessage) error {
	file, err := s.load(ctx, id, models.ActionDelete, requesterID, reqCtx)
	if err != nil {
		return err
	}

	if err := s.opts.Store.DeleteObject(ctx, file.Bucket, file.Key); err != nil {
		return fmt.Errorf("%w: %v", common.ErrDeleteFailed, err)
	}

	if err := s.repomanager.Files(s.db).Delete(ctx, file.ID); err != nil {
		return err
	}
	s.logger.Info(ctx, "file removed", "file_id", file.ID)
	return nil
}
