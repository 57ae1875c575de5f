package photo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/piccolo/service/internal/metrics"
	"github.com/piccolo/service/internal/storage"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

var (
	// ErrEmptyImage is returned for an upload with no bytes.
	ErrEmptyImage = errors.New("image is empty")
	// ErrUnsupportedType is returned when the bytes are not a known image format.
	ErrUnsupportedType = errors.New("unsupported image type")
	// ErrNotOwner is returned when a caller asks for another owner's key.
	ErrNotOwner = errors.New("photo belongs to another owner")
	// ErrHistoryDisabled is returned when no database is configured.
	ErrHistoryDisabled = errors.New("upload history is not enabled")
)

// extensions maps accepted content types to object key suffixes.
var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/heic": ".heic",
}

// Recorder keeps a history of uploads.
type Recorder interface {
	Record(ctx context.Context, p *Photo) error
	Recent(ctx context.Context, owner string, limit int) ([]Photo, error)
}

// UploadInput is one picked image.
type UploadInput struct {
	Owner    string
	Filename string
	Data     []byte
}

// Service contains the upload logic sitting between HTTP and storage.
type Service struct {
	stores   storage.Provider
	recorder Recorder
	log      *zap.Logger

	newID func() string
	now   func() time.Time
}

// NewService creates a new photo Service. The store is resolved through
// stores on every call so a reconnected client is picked up. recorder may be
// nil, in which case uploads are not recorded and History is unavailable.
func NewService(stores storage.Provider, recorder Recorder, log *zap.Logger) *Service {
	return &Service{
		stores:   stores,
		recorder: recorder,
		log:      log,
		newID:    func() string { return uuid.NewString() },
		now:      time.Now,
	}
}

// Upload validates the image and writes it to the bucket under a fresh key.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*Photo, error) {
	if len(in.Data) == 0 {
		metrics.Uploads.WithLabelValues("rejected").Inc()
		return nil, ErrEmptyImage
	}
	contentType := DetectImageType(in.Data)
	ext, ok := extensions[contentType]
	if !ok {
		metrics.Uploads.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	store, err := s.stores(ctx)
	if err != nil {
		metrics.Uploads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("resolve store: %w", err)
	}

	id := s.newID()
	p := &Photo{
		ID:           id,
		Owner:        in.Owner,
		Bucket:       store.Bucket(),
		Key:          ownerPrefix(in.Owner) + id + ext,
		ContentType:  contentType,
		Size:         int64(len(in.Data)),
		OriginalName: in.Filename,
		CreatedAt:    s.now().UTC(),
	}

	if err := store.WriteObject(ctx, in.Data, contentType, p.Key); err != nil {
		metrics.Uploads.WithLabelValues("error").Inc()
		s.log.Error("write object failed", zap.String("key", p.Key), zap.Error(err))
		return nil, fmt.Errorf("write object: %w", err)
	}
	metrics.Uploads.WithLabelValues("ok").Inc()
	metrics.UploadedBytes.Add(float64(p.Size))

	// The object is already stored; a missing history row is not worth
	// failing the upload over.
	if s.recorder != nil {
		if err := s.recorder.Record(ctx, p); err != nil {
			s.log.Warn("record upload failed", zap.String("key", p.Key), zap.Error(err))
		}
	}

	s.log.Info("photo uploaded",
		zap.String("key", p.Key),
		zap.String("contentType", contentType),
		zap.Int64("size", p.Size),
	)
	return p, nil
}

// List returns the objects stored for owner, or the whole bucket for
// anonymous callers.
func (s *Service) List(ctx context.Context, owner string) ([]storage.ObjectInfo, error) {
	store, err := s.stores(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve store: %w", err)
	}
	objs, err := store.ListObjects(ctx, ownerPrefix(owner))
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	if objs == nil {
		objs = []storage.ObjectInfo{}
	}
	return objs, nil
}

// Get fetches the image stored at key and its content type.
func (s *Service) Get(ctx context.Context, owner, key string) ([]byte, string, error) {
	if owner != "" && !strings.HasPrefix(key, ownerPrefix(owner)) {
		return nil, "", ErrNotOwner
	}
	store, err := s.stores(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("resolve store: %w", err)
	}
	data, err := store.GetObject(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("get object: %w", err)
	}
	return data, DetectImageType(data), nil
}

// History returns the owner's most recent uploads.
func (s *Service) History(ctx context.Context, owner string, limit int) ([]Photo, error) {
	if s.recorder == nil {
		return nil, ErrHistoryDisabled
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	photos, err := s.recorder.Recent(ctx, owner, limit)
	if err != nil {
		return nil, err
	}
	if photos == nil {
		photos = []Photo{}
	}
	return photos, nil
}

// EnsureBucket creates the bucket, treating "already exists" as success.
// It returns the bucket name and whether a new bucket was made.
func (s *Service) EnsureBucket(ctx context.Context) (string, bool, error) {
	store, err := s.stores(ctx)
	if err != nil {
		return "", false, fmt.Errorf("resolve store: %w", err)
	}
	bucket := store.Bucket()
	err = store.CreateBucket(ctx)
	switch {
	case err == nil:
		s.log.Info("created bucket", zap.String("bucket", bucket))
		return bucket, true, nil
	case storage.IsBucketExists(err):
		return bucket, false, nil
	default:
		return bucket, false, fmt.Errorf("create bucket %q: %w", bucket, err)
	}
}

// DetectImageType sniffs the content type from the leading bytes.
// HEIC is checked by hand since net/http does not know it.
func DetectImageType(data []byte) string {
	if isHEIC(data) {
		return "image/heic"
	}
	return http.DetectContentType(data)
}

// isHEIC looks for an ISO-BMFF ftyp box with a HEIF image brand.
func isHEIC(data []byte) bool {
	if len(data) < 12 || !bytes.Equal(data[4:8], []byte("ftyp")) {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "hevc", "heim", "heis", "mif1", "msf1":
		return true
	}
	return false
}

func ownerPrefix(owner string) string {
	if owner == "" {
		return ""
	}
	return owner + "/"
}
