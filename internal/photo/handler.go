package photo

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/piccolo/service/internal/middleware"
	"github.com/piccolo/service/internal/response"
	"github.com/piccolo/service/internal/storage"
)

// multipartOverhead leaves room for form boundaries and headers on top of
// the image itself.
const multipartOverhead = 1 << 20

// Handler holds HTTP handlers for photo endpoints.
type Handler struct {
	svc      *Service
	log      *zap.Logger
	maxBytes int64
}

// NewHandler creates a new photo Handler.
func NewHandler(svc *Service, log *zap.Logger, maxBytes int64) *Handler {
	return &Handler{svc: svc, log: log, maxBytes: maxBytes}
}

// Routes mounts the photo endpoints on r. Downloads go through optionalAuth
// so a key can be shared as a link; everything else needs requireAuth.
func (h *Handler) Routes(r chi.Router, requireAuth, optionalAuth func(http.Handler) http.Handler) {
	r.With(optionalAuth).Get("/photos/*", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/photos", h.Upload)
		r.Get("/photos", h.List)
		r.Get("/photos/history", h.History)
		r.Put("/bucket", h.CreateBucket)
	})
}

type bucketData struct {
	Bucket  string `json:"bucket"  example:"piccolo"`
	Created bool   `json:"created" example:"true"`
}

// Upload godoc
//
//	@Summary		Upload a photo
//	@Description	Stores the image from the multipart field "image" in the bucket under a generated key.
//	@Tags			photos
//	@Accept			mpfd
//	@Produce		json
//	@Security		BearerAuth
//	@Param			image	formData	file	true	"Image file (JPEG, PNG, GIF, WebP, HEIC)"
//	@Success		201		{object}	response.Envelope{data=Photo}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		413		{object}	response.Envelope
//	@Failure		415		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/photos [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			response.TooLarge(w, "image is too large")
			return
		}
		response.BadRequest(w, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		response.BadRequest(w, "image field is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		response.TooLarge(w, "image is too large")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		response.BadRequest(w, "could not read image")
		return
	}

	p, err := h.svc.Upload(r.Context(), UploadInput{
		Owner:    middleware.Owner(r.Context()),
		Filename: header.Filename,
		Data:     data,
	})
	switch {
	case err == nil:
		response.Created(w, p)
	case errors.Is(err, ErrEmptyImage):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrUnsupportedType):
		response.UnsupportedMedia(w, err.Error())
	default:
		response.InternalError(w)
	}
}

// List godoc
//
//	@Summary		List photos
//	@Description	Lists stored objects. Authenticated callers only see their own.
//	@Tags			photos
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=[]storage.ObjectInfo}
//	@Failure		401	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/photos [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	objs, err := h.svc.List(r.Context(), middleware.Owner(r.Context()))
	if err != nil {
		h.log.Error("list photos", zap.Error(err))
		response.InternalError(w)
		return
	}
	response.OK(w, objs)
}

// History godoc
//
//	@Summary		Upload history
//	@Description	Returns the caller's most recent upload records.
//	@Tags			photos
//	@Produce		json
//	@Security		BearerAuth
//	@Param			limit	query		int	false	"Max records (1-100)"	default(20)
//	@Success		200		{object}	response.Envelope{data=[]Photo}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		503		{object}	response.Envelope
//	@Router			/photos/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			response.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	photos, err := h.svc.History(r.Context(), middleware.Owner(r.Context()), limit)
	if err != nil {
		if errors.Is(err, ErrHistoryDisabled) {
			response.Unavailable(w, err.Error())
			return
		}
		h.log.Error("photo history", zap.Error(err))
		response.InternalError(w)
		return
	}
	response.OK(w, photos)
}

// Get godoc
//
//	@Summary		Download a photo
//	@Description	Returns the raw image bytes stored at key. The key may be sent with "/" escaped as %2F. Anonymous callers may fetch any key; authenticated callers only their own.
//	@Tags			photos
//	@Produce		image/jpeg,image/png,image/gif,image/webp,image/heic
//	@Security		BearerAuth
//	@Param			key	path	string	true	"Object key"
//	@Success		200
//	@Failure		400	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/photos/{key} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	// chi matches on the raw path, so an escaped "/" arrives as %2F.
	key, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil {
		response.BadRequest(w, "invalid key")
		return
	}
	if key == "" {
		response.BadRequest(w, "key is required")
		return
	}

	data, contentType, err := h.svc.Get(r.Context(), middleware.Owner(r.Context()), key)
	if err != nil {
		if errors.Is(err, ErrNotOwner) || storage.IsNotFound(err) {
			response.NotFound(w, "photo not found")
			return
		}
		h.log.Error("get photo", zap.String("key", key), zap.Error(err))
		response.InternalError(w)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// CreateBucket godoc
//
//	@Summary		Create the bucket
//	@Description	Creates the configured bucket. Succeeds when it already exists.
//	@Tags			bucket
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=bucketData}
//	@Failure		401	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/bucket [put]
func (h *Handler) CreateBucket(w http.ResponseWriter, r *http.Request) {
	bucket, created, err := h.svc.EnsureBucket(r.Context())
	if err != nil {
		h.log.Error("create bucket", zap.Error(err))
		response.InternalError(w)
		return
	}
	response.OK(w, bucketData{Bucket: bucket, Created: created})
}
