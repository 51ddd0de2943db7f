package dto

import (
	"time"

	"github.com/google/uuid"
)

// UploadFileRequest carries the multipart form fields of an upload.
// The file itself is read from the "file" part.
type UploadFileRequest struct {
	FileType    string `form:"fileType" binding:"omitempty,oneof=ESTIMATE CONTRACT PROPOSAL DRAWING PHOTO CORRESPONDENCE OTHER"`
	Description string `form:"description" binding:"max=500"`
}

// DealFileResponse represents one stored version of a deal file
type DealFileResponse struct {
	ID                uuid.UUID  `json:"fileId"`
	DealID            uuid.UUID  `json:"dealId"`
	OriginalFilename  string     `json:"originalFilename"`
	FileSize          int64      `json:"fileSize"`
	FormattedSize     string     `json:"formattedSize"`
	MimeType          string     `json:"mimeType"`
	FileType          string     `json:"fileType"`
	Description       string     `json:"description,omitempty"`
	Version           int        `json:"version"`
	IsCurrent         bool       `json:"isCurrent"`
	IsImage           bool       `json:"isImage"`
	IsPDF             bool       `json:"isPdf"`
	PreviousVersionID *uuid.UUID `json:"previousVersionId,omitempty"`
	UploadedByID      *uuid.UUID `json:"uploadedById,omitempty"`
	UploadedAt        time.Time  `json:"uploadedAt"`
}

// DownloadURLResponse is a short-lived signed link to a file
type DownloadURLResponse struct {
	FileID    uuid.UUID `json:"fileId"`
	URL       string    `json:"url"`
	ExpiresIn int       `json:"expiresIn" example:"900"`
}
