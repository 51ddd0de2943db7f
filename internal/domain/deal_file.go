package domain

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileType classifies a deal attachment
type FileType string

const (
	FileTypeEstimate       FileType = "ESTIMATE"
	FileTypeContract       FileType = "CONTRACT"
	FileTypeProposal       FileType = "PROPOSAL"
	FileTypeDrawing        FileType = "DRAWING"
	FileTypePhoto          FileType = "PHOTO"
	FileTypeCorrespondence FileType = "CORRESPONDENCE"
	FileTypeOther          FileType = "OTHER"
)

func (t FileType) Valid() bool {
	switch t {
	case FileTypeEstimate, FileTypeContract, FileTypeProposal, FileTypeDrawing,
		FileTypePhoto, FileTypeCorrespondence, FileTypeOther:
		return true
	}
	return false
}

// MaxFileSize is the default upload limit (10MB)
const MaxFileSize = 10 * 1024 * 1024

// DefaultAllowedExtensions are the extensions accepted for deal files
var DefaultAllowedExtensions = []string{
	"pdf", "doc", "docx",
	"xls", "xlsx", "csv",
	"jpg", "jpeg", "png", "gif", "webp",
	"txt", "rtf",
}

// DealFile is one version of a file attached to a deal.
// At most one row per (deal, original filename) has IsCurrent set.
type DealFile struct {
	BaseModel
	DealID            uuid.UUID  `gorm:"type:uuid;not null;index:idx_deal_files_deal_type,priority:1;index:idx_deal_files_deal_current,priority:1" json:"dealId"`
	StorageKey        string     `gorm:"type:text;not null" json:"-"`
	OriginalFilename  string     `gorm:"type:varchar(255);not null;index:idx_deal_files_deal_current,priority:3" json:"originalFilename"`
	FileSize          int64      `gorm:"not null" json:"fileSize"`
	MimeType          string     `gorm:"type:varchar(100);not null" json:"mimeType"`
	FileType          FileType   `gorm:"type:varchar(20);not null;default:'OTHER';index:idx_deal_files_deal_type,priority:2" json:"fileType"`
	Description       string     `gorm:"type:varchar(500)" json:"description,omitempty"`
	Version           int        `gorm:"not null;default:1" json:"version"`
	IsCurrent         bool       `gorm:"not null;index:idx_deal_files_deal_current,priority:2" json:"isCurrent"`
	PreviousVersionID *uuid.UUID `gorm:"type:uuid" json:"previousVersionId,omitempty"`
	UploadedByID      *uuid.UUID `gorm:"type:uuid" json:"uploadedById,omitempty"`
	UploadedAt        time.Time  `gorm:"type:timestamp;not null;index:idx_deal_files_uploaded_at" json:"uploadedAt"`
}

// TableName specifies the table name for DealFile
func (DealFile) TableName() string {
	return "deal_files"
}

// Extension is the lower-case extension without the dot
func (f *DealFile) Extension() string {
	return FileExtension(f.OriginalFilename)
}

func (f *DealFile) IsImage() bool {
	switch f.Extension() {
	case "jpg", "jpeg", "png", "gif", "webp":
		return true
	}
	return false
}

func (f *DealFile) IsPDF() bool {
	return f.Extension() == "pdf"
}

// FormattedSize renders the size as B, KB or MB
func (f *DealFile) FormattedSize() string {
	switch {
	case f.FileSize < 1024:
		return fmt.Sprintf("%d B", f.FileSize)
	case f.FileSize < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(f.FileSize)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(f.FileSize)/(1024*1024))
	}
}

// FileExtension returns the lower-case extension of name without the dot
func FileExtension(name string) string {
	ext := path.Ext(name)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// NextVersion links next to the current file it replaces. prev may be nil
// when no current file with the same name exists.
func NextVersion(prev *DealFile, next *DealFile) {
	if prev == nil {
		next.Version = 1
		next.PreviousVersionID = nil
		next.IsCurrent = true
		return
	}
	prev.IsCurrent = false
	id := prev.ID
	next.PreviousVersionID = &id
	next.Version = prev.Version + 1
	next.IsCurrent = true
}
