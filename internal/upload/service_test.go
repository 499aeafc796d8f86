package upload

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"invoicedash/internal/apperr"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n")

func TestUploadAcceptsPDF(t *testing.T) {
	reg := NewMemoryRegistry()
	svc := NewService(reg, time.Hour, zap.NewNop())
	svc.newID = func() string { return "file-123" }
	ctx := context.Background()

	file, err := svc.Upload(ctx, bytes.NewReader(samplePDF), int64(len(samplePDF)), "application/pdf", "invoice.pdf")
	require.NoError(t, err)

	sum := sha256.Sum256(samplePDF)
	assert.Equal(t, "file-123", file.FileID)
	assert.Equal(t, "invoice.pdf", file.FileName)
	assert.Equal(t, int64(len(samplePDF)), file.Size)
	assert.Equal(t, hex.EncodeToString(sum[:]), file.SHA256)

	stored, err := svc.Lookup(ctx, "file-123")
	require.NoError(t, err)
	assert.Equal(t, file, stored)
}

func TestUploadIssuesDistinctIDs(t *testing.T) {
	svc := NewService(NewMemoryRegistry(), time.Hour, nil)
	ctx := context.Background()

	a, err := svc.Upload(ctx, bytes.NewReader(samplePDF), -1, "application/pdf", "a.pdf")
	require.NoError(t, err)
	b, err := svc.Upload(ctx, bytes.NewReader(samplePDF), -1, "application/pdf", "a.pdf")
	require.NoError(t, err)
	assert.NotEmpty(t, a.FileID)
	assert.NotEqual(t, a.FileID, b.FileID)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	svc := NewService(nil, time.Hour, nil)
	ctx := context.Background()

	for _, mime := range []string{"image/png", "text/plain", "", "not a mime"} {
		_, err := svc.Upload(ctx, strings.NewReader("hello"), 5, mime, "notes.txt")
		assert.True(t, apperr.Is(err, apperr.InvalidArgument), "mime %q: got %v", mime, err)
	}

	_, err := svc.Upload(ctx, nil, 0, "application/pdf", "x.pdf")
	assert.True(t, apperr.Is(err, apperr.InvalidArgument), "got %v", err)
}

func TestUploadAcceptsMimeParameters(t *testing.T) {
	svc := NewService(nil, time.Hour, nil)
	_, err := svc.Upload(context.Background(), bytes.NewReader(samplePDF), -1, "application/pdf; name=x.pdf", "x.pdf")
	assert.NoError(t, err)
}

func TestUploadSizeLimit(t *testing.T) {
	svc := NewService(nil, time.Hour, nil)
	ctx := context.Background()

	_, err := svc.Upload(ctx, strings.NewReader(""), MaxFileSize+1, "application/pdf", "big.pdf")
	assert.True(t, apperr.Is(err, apperr.PayloadTooLarge), "declared size: got %v", err)

	// size unknown up front, stream is one byte over
	_, err = svc.Upload(ctx, io.LimitReader(zeroReader{}, MaxFileSize+1), -1, "application/pdf", "big.pdf")
	assert.True(t, apperr.Is(err, apperr.PayloadTooLarge), "streamed size: got %v", err)

	file, err := svc.Upload(ctx, io.LimitReader(zeroReader{}, MaxFileSize), MaxFileSize, "application/pdf", "edge.pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(MaxFileSize), file.Size)
}

func TestUploadWarnsWhenContentIsNotPDF(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	svc := NewService(nil, time.Hour, zap.New(core))

	_, err := svc.Upload(context.Background(), strings.NewReader("plain text"), 10, "application/pdf", "fake.pdf")
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("upload content does not look like a pdf").Len())
}

func TestUploadCleansFileName(t *testing.T) {
	svc := NewService(nil, time.Hour, nil)
	ctx := context.Background()

	cases := map[string]string{
		"":                     defaultFileName,
		"   ":                  defaultFileName,
		"../../etc/passwd.pdf": "passwd.pdf",
		`C:\Users\me\bill.pdf`: "bill.pdf",
		"scans/2024/march.pdf": "march.pdf",
	}
	for in, want := range cases {
		file, err := svc.Upload(ctx, bytes.NewReader(samplePDF), -1, "application/pdf", in)
		require.NoError(t, err)
		assert.Equal(t, want, file.FileName, "input %q", in)
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}
