package models

import "time"

// UploadedFile describes an accepted upload. The bytes themselves are not kept.
type UploadedFile struct {
	FileID     string    `json:"fileId"`
	FileName   string    `json:"fileName"`
	MimeType   string    `json:"mimeType"`
	Size       int64     `json:"size"`
	SHA256     string    `json:"sha256"`
	UploadedAt time.Time `json:"uploadedAt"`
}
