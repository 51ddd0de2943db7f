package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"crm-pipeline-api/internal/domain"
	"crm-pipeline-api/internal/dto"
	"crm-pipeline-api/internal/metrics"
	"crm-pipeline-api/internal/repository"
	"crm-pipeline-api/internal/response"
)

// DownloadURLExpiry is how long a signed download link stays valid
const DownloadURLExpiry = 15 * time.Minute

// maxVersionChain bounds the previous-version walk
const maxVersionChain = 1000

// FileUpload is one file received from a client
type FileUpload struct {
	Filename    string
	Size        int64
	ContentType string
	Body        io.Reader
	FileType    string
	Description string
}

// UploadLimits restricts what may be uploaded
type UploadLimits struct {
	MaxFileSize       int64
	AllowedExtensions []string
}

// FileService defines the interface for deal file business logic
type FileService interface {
	UploadFile(ctx context.Context, dealID uuid.UUID, upload FileUpload) (*dto.DealFileResponse, error)
	ListFiles(ctx context.Context, dealID uuid.UUID, includeHistory bool) ([]dto.DealFileResponse, error)
	GetVersions(ctx context.Context, fileID uuid.UUID) ([]dto.DealFileResponse, error)
	GetDownloadURL(ctx context.Context, fileID uuid.UUID) (*dto.DownloadURLResponse, error)
	DeleteFile(ctx context.Context, fileID uuid.UUID) error
}

// fileServiceImpl is the implementation of FileService
type fileServiceImpl struct {
	fileRepo repository.DealFileRepository
	dealRepo repository.DealRepository
	activity ActivityService
	tx       repository.Transactor
	s3Client S3Client
	limits   UploadLimits
	allowed  map[string]bool
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewFileService creates a new instance of FileService
func NewFileService(
	fileRepo repository.DealFileRepository,
	dealRepo repository.DealRepository,
	activity ActivityService,
	tx repository.Transactor,
	s3Client S3Client,
	limits UploadLimits,
	m *metrics.Metrics,
	logger *zap.Logger,
) FileService {
	if limits.MaxFileSize <= 0 {
		limits.MaxFileSize = domain.MaxFileSize
	}
	if len(limits.AllowedExtensions) == 0 {
		limits.AllowedExtensions = domain.DefaultAllowedExtensions
	}
	allowed := make(map[string]bool, len(limits.AllowedExtensions))
	for _, ext := range limits.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	return &fileServiceImpl{
		fileRepo: fileRepo,
		dealRepo: dealRepo,
		activity: activity,
		tx:       tx,
		s3Client: s3Client,
		limits:   limits,
		allowed:  allowed,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// UploadFile stores the blob, then records the new version. An upload with
// the name of the deal's current file supersedes it.
func (s *fileServiceImpl) UploadFile(ctx context.Context, dealID uuid.UUID, upload FileUpload) (*dto.DealFileResponse, error) {
	actorID, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validateUpload(&upload); err != nil {
		return nil, err
	}
	if s.s3Client == nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "File storage is not configured", "")
	}

	if _, err := s.dealRepo.FindByID(ctx, dealID); err != nil {
		return nil, lookupError(err, "Deal not found", "Failed to fetch deal")
	}

	key := s.s3Client.GenerateFileKey(dealID, upload.Filename)
	if _, err := s.s3Client.UploadFile(ctx, key, upload.Body, upload.ContentType); err != nil {
		s.logger.Error("Failed to upload file to storage",
			zap.String("deal_id", dealID.String()),
			zap.String("key", key),
			zap.Error(err))
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to upload file", err.Error())
	}

	file := &domain.DealFile{
		DealID:           dealID,
		StorageKey:       key,
		OriginalFilename: upload.Filename,
		FileSize:         upload.Size,
		MimeType:         upload.ContentType,
		FileType:         domain.FileType(upload.FileType),
		Description:      upload.Description,
		UploadedByID:     uuidPtr(actorID),
		UploadedAt:       s.now(),
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		prev, err := s.fileRepo.FindCurrentByName(ctx, dealID, upload.Filename)
		if err != nil {
			return response.NewAppError(response.ErrCodeInternal, "Failed to fetch current file", err.Error())
		}
		domain.NextVersion(prev, file)
		if prev != nil {
			if err := s.fileRepo.MarkNotCurrent(ctx, prev.ID); err != nil {
				return response.NewAppError(response.ErrCodeInternal, "Failed to supersede previous version", err.Error())
			}
		}
		if err := s.fileRepo.Create(ctx, file); err != nil {
			return response.NewAppError(response.ErrCodeInternal, "Failed to save file", err.Error())
		}

		metadata := map[string]interface{}{
			"fileId":  file.ID,
			"version": file.Version,
		}
		if file.PreviousVersionID != nil {
			metadata["previousVersionId"] = *file.PreviousVersionID
		}
		return s.activity.Record(ctx, ActivityEntry{
			DealID:      dealID,
			Type:        domain.ActivityFileAdded,
			Description: fmt.Sprintf("File added: %s (v%d)", file.OriginalFilename, file.Version),
			NewValue:    file.OriginalFilename,
			Metadata:    metadata,
			UserID:      uuidPtr(actorID),
		})
	})
	if err != nil {
		if delErr := s.s3Client.DeleteFile(ctx, key); delErr != nil {
			s.logger.Warn("Failed to remove orphaned upload",
				zap.String("key", key),
				zap.Error(delErr))
		}
		return nil, writeError(err, "Failed to save file")
	}

	if s.metrics != nil {
		s.metrics.IncrementFileUploaded()
	}
	s.logger.Info("File uploaded",
		zap.String("deal_id", dealID.String()),
		zap.String("file_id", file.ID.String()),
		zap.Int("version", file.Version),
		zap.Int64("size", file.FileSize))

	resp := toFileResponse(file)
	return &resp, nil
}

// ListFiles returns the current files of a deal, or every version when
// includeHistory is set
func (s *fileServiceImpl) ListFiles(ctx context.Context, dealID uuid.UUID, includeHistory bool) ([]dto.DealFileResponse, error) {
	if _, err := s.dealRepo.FindByID(ctx, dealID); err != nil {
		return nil, lookupError(err, "Deal not found", "Failed to fetch deal")
	}

	files, err := s.fileRepo.FindByDeal(ctx, dealID, !includeHistory)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch files", err.Error())
	}
	return toFileResponses(files), nil
}

// GetVersions returns the version chain the file belongs to, newest first
func (s *fileServiceImpl) GetVersions(ctx context.Context, fileID uuid.UUID) ([]dto.DealFileResponse, error) {
	file, err := s.fileRepo.FindByID(ctx, fileID)
	if err != nil {
		return nil, lookupError(err, "File not found", "Failed to fetch file")
	}

	head := file
	if !file.IsCurrent {
		current, err := s.fileRepo.FindCurrentByName(ctx, file.DealID, file.OriginalFilename)
		if err != nil {
			return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch current file", err.Error())
		}
		if current != nil && s.chainContains(ctx, current, file.ID) {
			head = current
		}
	}

	chain, err := s.walkVersions(ctx, head)
	if err != nil {
		return nil, err
	}
	return toFileResponses(chain), nil
}

// GetDownloadURL signs a short-lived link to the stored blob
func (s *fileServiceImpl) GetDownloadURL(ctx context.Context, fileID uuid.UUID) (*dto.DownloadURLResponse, error) {
	file, err := s.fileRepo.FindByID(ctx, fileID)
	if err != nil {
		return nil, lookupError(err, "File not found", "Failed to fetch file")
	}
	if s.s3Client == nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "File storage is not configured", "")
	}

	url, err := s.s3Client.GeneratePresignedDownloadURL(ctx, file.StorageKey, file.OriginalFilename, DownloadURLExpiry)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to generate download URL", err.Error())
	}
	return &dto.DownloadURLResponse{
		FileID:    file.ID,
		URL:       url,
		ExpiresIn: int(DownloadURLExpiry.Seconds()),
	}, nil
}

// DeleteFile removes one version. Older versions are not promoted.
func (s *fileServiceImpl) DeleteFile(ctx context.Context, fileID uuid.UUID) error {
	actorID, err := actorFromContext(ctx)
	if err != nil {
		return err
	}

	var file *domain.DealFile
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		found, err := s.fileRepo.FindByID(ctx, fileID)
		if err != nil {
			return lookupError(err, "File not found", "Failed to fetch file")
		}
		file = found

		if err := s.activity.Record(ctx, ActivityEntry{
			DealID:      file.DealID,
			Type:        domain.ActivityFileRemoved,
			Description: fmt.Sprintf("File removed: %s", file.OriginalFilename),
			OldValue:    file.OriginalFilename,
			Metadata:    map[string]interface{}{"fileId": file.ID, "version": file.Version},
			UserID:      uuidPtr(actorID),
		}); err != nil {
			return err
		}
		if err := s.fileRepo.Delete(ctx, fileID); err != nil {
			return lookupError(err, "File not found", "Failed to delete file")
		}
		return nil
	})
	if err != nil {
		return writeError(err, "Failed to delete file")
	}

	if s.s3Client != nil {
		if err := s.s3Client.DeleteFile(ctx, file.StorageKey); err != nil {
			s.logger.Warn("Failed to delete stored file",
				zap.String("file_id", fileID.String()),
				zap.String("key", file.StorageKey),
				zap.Error(err))
		}
	}
	return nil
}

func (s *fileServiceImpl) validateUpload(upload *FileUpload) error {
	upload.Filename = strings.TrimSpace(upload.Filename)
	if upload.Filename == "" {
		return validationError("File name is required", "file")
	}
	ext := domain.FileExtension(upload.Filename)
	if !s.allowed[ext] {
		return validationError(fmt.Sprintf("File type .%s is not allowed", ext), "file")
	}
	if upload.Size <= 0 {
		return validationError("File is empty", "file")
	}
	if upload.Size > s.limits.MaxFileSize {
		return validationError(fmt.Sprintf("File exceeds the %d MB limit", s.limits.MaxFileSize/(1024*1024)), "file")
	}

	if upload.FileType == "" {
		upload.FileType = string(domain.FileTypeOther)
	}
	upload.FileType = strings.ToUpper(upload.FileType)
	if !domain.FileType(upload.FileType).Valid() {
		return validationError(fmt.Sprintf("invalid file type %q", upload.FileType), "fileType")
	}

	if upload.ContentType == "" || upload.ContentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension("." + ext); byExt != "" {
			upload.ContentType = byExt
		} else {
			upload.ContentType = "application/octet-stream"
		}
	}
	return nil
}

// walkVersions follows previous-version links from head. A link that points
// back into the chain or past maxVersionChain ends the walk.
func (s *fileServiceImpl) walkVersions(ctx context.Context, head *domain.DealFile) ([]*domain.DealFile, error) {
	chain := []*domain.DealFile{head}
	seen := map[uuid.UUID]bool{head.ID: true}
	current := head
	for current.PreviousVersionID != nil && len(chain) < maxVersionChain {
		prevID := *current.PreviousVersionID
		if seen[prevID] {
			s.logger.Warn("File version chain contains a cycle", zap.String("file_id", prevID.String()))
			break
		}
		prev, err := s.fileRepo.FindByID(ctx, prevID)
		if err != nil {
			if isNotFound(err) {
				break
			}
			return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch file version", err.Error())
		}
		seen[prevID] = true
		chain = append(chain, prev)
		current = prev
	}
	return chain, nil
}

func (s *fileServiceImpl) chainContains(ctx context.Context, head *domain.DealFile, target uuid.UUID) bool {
	chain, err := s.walkVersions(ctx, head)
	if err != nil {
		return false
	}
	for _, f := range chain {
		if f.ID == target {
			return true
		}
	}
	return false
}
