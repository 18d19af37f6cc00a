package middleware

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/charlesng35/shopadmin/internal/upload"
	appErrors "github.com/charlesng35/shopadmin/pkg/errors"
	"github.com/charlesng35/shopadmin/pkg/logger"
	"github.com/charlesng35/shopadmin/pkg/metrics"
	"github.com/charlesng35/shopadmin/pkg/response"
)

// CtxUploadsKey holds the upload.Set accepted for the current request.
const CtxUploadsKey = "uploads"

const (
	DefaultMaxUploadSize  int64 = 5 << 20
	multipartMemoryBuffer int64 = 8 << 20
)

// DefaultAllowedImageTypes lists the content types accepted for images.
var DefaultAllowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// BlobWriter persists accepted files and removes them again when a request is rejected.
type BlobWriter interface {
	Save(ctx context.Context, path string, r io.Reader) (int64, error)
	Delete(ctx context.Context, path string)
}

// UploadField declares a multipart file field and how many files it may carry.
type UploadField struct {
	Name     string
	MaxCount int
}

// UploadConfig configures a single upload route.
type UploadConfig struct {
	Dir          string // blob directory, e.g. "avatars"
	Fields       []UploadField
	MaxFileSize  int64
	AllowedTypes []string
}

// Upload saves the declared multipart files to the blob store before the handler runs.
// Rejected requests leave no file behind. Non multipart requests pass through with an
// empty upload set.
func Upload(store BlobWriter, cfg UploadConfig) gin.HandlerFunc {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxUploadSize
	}
	if len(cfg.AllowedTypes) == 0 {
		cfg.AllowedTypes = DefaultAllowedImageTypes
	}
	declared := make(map[string]int, len(cfg.Fields))
	bodyLimit := multipartMemoryBuffer
	for _, field := range cfg.Fields {
		if field.MaxCount <= 0 {
			field.MaxCount = 1
		}
		declared[field.Name] = field.MaxCount
		bodyLimit += int64(field.MaxCount) * cfg.MaxFileSize
	}
	log := logger.WithModule("upload")

	return func(c *gin.Context) {
		set := upload.Set{}
		if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
			attachUploads(c, set)
			c.Next()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, bodyLimit)
		if err := c.Request.ParseMultipartForm(multipartMemoryBuffer); err != nil {
			reject(c, log, nil, store, set, appErrors.NewBadRequest("Invalid multipart form").WithInternal(err))
			return
		}

		for field, headers := range c.Request.MultipartForm.File {
			limit, ok := declared[field]
			if !ok {
				reject(c, log, &field, store, set, appErrors.NewFieldValidation(field, fmt.Sprintf("unexpected file field %q", field)))
				return
			}
			if len(headers) > limit {
				reject(c, log, &field, store, set, appErrors.NewFieldValidation(field, fmt.Sprintf("at most %d file(s) allowed", limit)))
				return
			}
			for _, header := range headers {
				file, err := acceptFile(c.Request.Context(), store, cfg, field, header)
				if err != nil {
					reject(c, log, &field, store, set, err)
					return
				}
				set.Add(file)
				metrics.Uploads.WithLabelValues("accepted").Inc()
			}
		}

		attachUploads(c, set)
		c.Next()
	}
}

// Uploads returns the files accepted by Upload for this request.
func Uploads(c *gin.Context) upload.Set {
	if value, ok := c.Get(CtxUploadsKey); ok {
		if set, ok := value.(upload.Set); ok {
			return set
		}
	}
	return upload.Set{}
}

func attachUploads(c *gin.Context, set upload.Set) {
	c.Set(CtxUploadsKey, set)
	c.Request = c.Request.WithContext(upload.WithSet(c.Request.Context(), set))
}

func acceptFile(ctx context.Context, store BlobWriter, cfg UploadConfig, field string, header *multipart.FileHeader) (upload.File, error) {
	if header.Size > cfg.MaxFileSize {
		return upload.File{}, appErrors.NewFieldValidation(field,
			fmt.Sprintf("file %q exceeds the maximum size of %d MB", header.Filename, cfg.MaxFileSize>>20))
	}

	src, err := header.Open()
	if err != nil {
		return upload.File{}, fmt.Errorf("open upload %s: %w", header.Filename, err)
	}
	defer src.Close()

	mtype, err := mimetype.DetectReader(src)
	if err != nil {
		return upload.File{}, fmt.Errorf("detect upload type %s: %w", header.Filename, err)
	}
	if !mimetype.EqualsAny(mtype.String(), cfg.AllowedTypes...) {
		return upload.File{}, appErrors.NewFieldValidation(field,
			fmt.Sprintf("only %s images are allowed", strings.Join(shortTypes(cfg.AllowedTypes), ", ")))
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return upload.File{}, fmt.Errorf("rewind upload %s: %w", header.Filename, err)
	}

	filename := fmt.Sprintf("%s-%s%s", field, uuid.NewString(), mtype.Extension())
	blobPath := path.Join(cfg.Dir, filename)
	size, err := store.Save(ctx, blobPath, src)
	if err != nil {
		return upload.File{}, err
	}

	return upload.File{
		Field:       field,
		Filename:    filename,
		Path:        blobPath,
		Size:        size,
		ContentType: mtype.String(),
	}, nil
}

func reject(c *gin.Context, log *zap.Logger, field *string, store BlobWriter, saved upload.Set, err error) {
	for _, file := range saved.Files() {
		store.Delete(c.Request.Context(), file.Path)
	}
	metrics.Uploads.WithLabelValues("rejected").Inc()

	fields := []zap.Field{zap.String("path", c.Request.URL.Path), zap.Int("discarded", len(saved.Files())), zap.Error(err)}
	if field != nil {
		fields = append(fields, zap.String("field", *field))
	}
	log.Info("upload rejected", fields...)

	response.Error(c, err)
	c.Abort()
}

func shortTypes(types []string) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, strings.TrimPrefix(t, "image/"))
	}
	return out
}
