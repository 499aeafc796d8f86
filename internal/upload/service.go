package upload

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"invoicedash/internal/apperr"
	"invoicedash/internal/models"
)

const (
	// MaxFileSize is the largest accepted upload, 25 MiB.
	MaxFileSize = 25 << 20
	PDFMimeType = "application/pdf"

	defaultFileName = "document.pdf"
	sniffLen        = 512
)

// Service accepts PDF uploads and hands out file ids. The bytes are read,
// measured and hashed, then dropped.
type Service struct {
	registry Registry
	ttl      time.Duration
	log      *zap.Logger
	now      func() time.Time
	newID    func() string
}

func NewService(registry Registry, ttl time.Duration, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		registry: registry,
		ttl:      ttl,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Upload validates the declared type and size of a PDF and returns its new
// file id. size is the length reported by the transport, -1 if unknown.
func (s *Service) Upload(ctx context.Context, r io.Reader, size int64, declaredMime, fileName string) (*models.UploadedFile, error) {
	if r == nil {
		return nil, apperr.New(apperr.InvalidArgument, "No PDF file uploaded")
	}
	mediaType, _, err := mime.ParseMediaType(declaredMime)
	if err != nil || mediaType != PDFMimeType {
		return nil, apperr.New(apperr.InvalidArgument, "Only PDF files are allowed")
	}
	if size > MaxFileSize {
		return nil, errTooLarge()
	}

	br := bufio.NewReaderSize(r, sniffLen)
	head, _ := br.Peek(sniffLen)
	sniffed := http.DetectContentType(head)

	hasher := sha256.New()
	n, err := io.Copy(hasher, io.LimitReader(br, MaxFileSize+1))
	if err != nil {
		return nil, apperr.Wrap(apperr.Unexpected, "read upload failed", err)
	}
	if n > MaxFileSize {
		return nil, errTooLarge()
	}

	file := &models.UploadedFile{
		FileID:     s.newID(),
		FileName:   cleanFileName(fileName),
		MimeType:   mediaType,
		Size:       n,
		SHA256:     hex.EncodeToString(hasher.Sum(nil)),
		UploadedAt: s.now().UTC(),
	}
	if sniffed != PDFMimeType {
		s.log.Warn("upload content does not look like a pdf",
			zap.String("file_id", file.FileID),
			zap.String("file_name", file.FileName),
			zap.String("sniffed", sniffed),
		)
	}
	if s.registry != nil {
		if err := s.registry.Put(ctx, file, s.ttl); err != nil {
			s.log.Warn("record upload failed", zap.String("file_id", file.FileID), zap.Error(err))
		}
	}
	s.log.Info("upload accepted",
		zap.String("file_id", file.FileID),
		zap.String("file_name", file.FileName),
		zap.Int64("size", file.Size),
	)
	return file, nil
}

// Lookup resolves a previously issued file id.
func (s *Service) Lookup(ctx context.Context, fileID string) (*models.UploadedFile, error) {
	if s.registry == nil {
		return nil, errUnknownFile(fileID)
	}
	return s.registry.Lookup(ctx, fileID)
}

func errTooLarge() error {
	return apperr.New(apperr.PayloadTooLarge, "File exceeds the 25 MiB limit")
}

func cleanFileName(name string) string {
	name = filepath.Base(strings.TrimSpace(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return defaultFileName
	}
	return name
}
