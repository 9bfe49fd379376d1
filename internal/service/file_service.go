package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/research-archive-api/internal/dto"
	"github.com/noah-isme/research-archive-api/internal/models"
	"github.com/noah-isme/research-archive-api/internal/repository"
	"github.com/noah-isme/research-archive-api/pkg/config"
	appErrors "github.com/noah-isme/research-archive-api/pkg/errors"
	"github.com/noah-isme/research-archive-api/pkg/extract"
)

var fileMimeTypes = map[string]string{
	".pdf": "application/pdf",
	".mp4": "video/mp4",
	".png": "image/png",
}

// Extensions that fix the file type regardless of what the uploader picked.
var forcedFileTypes = map[string]int{
	".mp4": models.FileTypeVideo,
	".png": models.FileTypeImage,
}

type fileStore interface {
	FindByID(ctx context.Context, id string) (*models.File, error)
	ExistsByHash(ctx context.Context, hashsum string) (bool, error)
	Create(ctx context.Context, file *models.File) error
	Update(ctx context.Context, file *models.File, at time.Time) error
	IncrementAccess(ctx context.Context, id string) error
	IncrementPreview(ctx context.Context, id string) error
}

type studyAuthorship interface {
	FindByID(ctx context.Context, id string) (*models.StudyRecord, error)
	IsAuthor(ctx context.Context, studyID, userID string) (bool, error)
}

type fileStorage interface {
	SaveStream(filename string, r io.Reader) (string, int64, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type previewSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (resourceID, relPath string, expiresAt time.Time, err error)
}

type sessionCounter interface {
	Mark(ctx context.Context, sessionID string, kind repository.HistoryKind, fileID string) (bool, error)
}

type historyScheduler interface {
	Record(kind repository.HistoryKind, userID string, fileIDs ...string)
}

// TextExtractor pulls searchable text and a publication year out of a PDF upload.
type TextExtractor interface {
	Extract(r io.Reader) (*extract.Result, error)
}

// FileUpload carries upload metadata and stream reader.
type FileUpload struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker
}

// FileDownload bundles file reader metadata for streaming a preview.
type FileDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
}

// FileService handles uploads, file pages and previews.
type FileService struct {
	files     fileStore
	studies   studyAuthorship
	storage   fileStorage
	signer    previewSigner
	sessions  sessionCounter
	history   historyScheduler
	extractor TextExtractor
	config    *config.Store
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewFileService constructs a FileService. extractor may be nil, in which case PDFs are stored
// without searchable content.
func NewFileService(files fileStore, studies studyAuthorship, storage fileStorage, signer previewSigner, sessions sessionCounter, history historyScheduler, extractor TextExtractor, cfg *config.Store, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *FileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileService{
		files:     files,
		studies:   studies,
		storage:   storage,
		signer:    signer,
		sessions:  sessions,
		history:   history,
		extractor: extractor,
		config:    cfg,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Upload stores a new file under a study. Only the study's authors and admins may upload.
func (s *FileService) Upload(ctx context.Context, studyID string, meta dto.FileUploadRequest, upload FileUpload, actor *models.JWTClaims) (*dto.FileView, error) {
	if _, err := s.authorize(ctx, studyID, actor); err != nil {
		return nil, err
	}
	meta.Summary = strings.TrimSpace(meta.Summary)
	if err := s.validator.Struct(meta); err != nil {
		return nil, validationError(err, "invalid file payload")
	}
	uploads := s.uploadSettings()
	if upload.Content == nil || upload.Size <= 0 {
		return nil, appErrors.Validation("file", "file is required")
	}
	if uploads.MaxFileSizeBytes > 0 && upload.Size > uploads.MaxFileSizeBytes {
		return nil, appErrors.Validation("file", fmt.Sprintf("file exceeds %d bytes limit", uploads.MaxFileSizeBytes))
	}

	ext := strings.ToLower(filepath.Ext(upload.Filename))
	if !extensionAllowed(ext, uploads.AllowedExtensions) {
		return nil, appErrors.Validation("file", "file extension not allowed")
	}
	fileType := meta.Type
	if forced, ok := forcedFileTypes[ext]; ok {
		fileType = forced
	}
	if fileType == 0 {
		return nil, appErrors.Validation("type", "type is required")
	}

	hashsum, err := hashStream(upload.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash upload")
	}
	exists, err := s.files.ExistsByHash(ctx, hashsum)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check duplicate upload")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "file already uploaded")
	}

	file := &models.File{
		StudyID:  studyID,
		Name:     filepath.Base(upload.Filename),
		Summary:  meta.Summary,
		Type:     fileType,
		PubYear:  meta.PubYear,
		Hashsum:  hashsum,
		CreateAt: s.now().UTC(),
	}
	if ext == ".pdf" {
		if err := s.extractPDF(upload.Content, file); err != nil {
			return nil, err
		}
	}

	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	storedName := fmt.Sprintf("%s/%s-%s", studyID, file.CreateAt.Format("20060102150405"), sanitizeFilename(file.Name))
	path, _, err := s.storage.SaveStream(storedName, upload.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist file")
	}
	file.Filename = path

	if err := s.files.Create(ctx, file); err != nil {
		if rmErr := s.storage.Delete(path); rmErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("path", path), zap.Error(rmErr))
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "file already uploaded")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create file")
	}

	s.logger.Info("file uploaded",
		zap.String("file_id", file.ID),
		zap.String("study_id", studyID),
		zap.Int("type", file.Type),
		zap.String("actor", actor.UserID),
	)
	view := dto.NewFileView(*file, actor.IsAdmin())
	return &view, nil
}

// Update edits file metadata. Video and image files keep their type.
func (s *FileService) Update(ctx context.Context, id string, req dto.FileEditRequest, actor *models.JWTClaims) (*dto.FileView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	file, err := s.visibleFile(ctx, id, actor.IsAdmin())
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, file.StudyID, actor); err != nil {
		return nil, err
	}
	req.Summary = strings.TrimSpace(req.Summary)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid file payload")
	}

	file.Summary = req.Summary
	file.PubYear = req.PubYear
	if !isForcedType(file.Type) && req.Type != 0 {
		file.Type = req.Type
	}
	if err := s.files.Update(ctx, file, s.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errHidden("file")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update file")
	}
	view := dto.NewFileView(*file, actor.IsAdmin())
	return &view, nil
}

// Get returns the file page. The access counter moves once per session and signed-in
// viewers get a history entry.
func (s *FileService) Get(ctx context.Context, id string, viewer *models.JWTClaims, sessionID string) (*dto.FileDetail, error) {
	admin := viewer.IsAdmin()
	file, err := s.visibleFile(ctx, id, admin)
	if err != nil {
		return nil, err
	}
	study, err := s.studies.FindByID(ctx, file.StudyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errHidden("file")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load study")
	}

	if s.countOnce(ctx, sessionID, repository.HistoryAccess, file.ID) {
		if err := s.files.IncrementAccess(ctx, file.ID); err != nil {
			s.logger.Warn("failed to count access", zap.String("file_id", file.ID), zap.Error(err))
		} else {
			file.AccessCount++
			s.metrics.RecordFileView(string(repository.HistoryAccess))
		}
	}
	if viewer != nil {
		s.history.Record(repository.HistoryAccess, viewer.UserID, file.ID)
	}

	detail := &dto.FileDetail{FileView: dto.NewFileView(*file, admin), StudyName: study.Name}
	if file.Filename != "" {
		token, expiresAt, err := s.signer.Generate(file.ID, file.Filename)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign preview link")
		}
		base := strings.TrimRight(s.apiPrefix(), "/")
		detail.PreviewURL = fmt.Sprintf("%s/files/%s/preview?token=%s", base, file.ID, url.QueryEscape(token))
		detail.PreviewExpiresAt = expiresAt
	}
	return detail, nil
}

// Preview validates the signed token and opens the stored file. The preview counter moves
// once per session.
func (s *FileService) Preview(ctx context.Context, id, token string, viewer *models.JWTClaims, sessionID string) (*FileDownload, error) {
	file, err := s.visibleFile(ctx, id, viewer.IsAdmin())
	if err != nil {
		return nil, err
	}
	fileID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	if fileID != file.ID || relPath != file.Filename {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}

	handle, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	info, err := handle.Stat()
	if err != nil {
		handle.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read file metadata")
	}

	if s.countOnce(ctx, sessionID, repository.HistoryPreview, file.ID) {
		if err := s.files.IncrementPreview(ctx, file.ID); err != nil {
			s.logger.Warn("failed to count preview", zap.String("file_id", file.ID), zap.Error(err))
		} else {
			s.metrics.RecordFileView(string(repository.HistoryPreview))
		}
	}
	if viewer != nil {
		s.history.Record(repository.HistoryPreview, viewer.UserID, file.ID)
	}

	mimeType, ok := fileMimeTypes[strings.ToLower(filepath.Ext(relPath))]
	if !ok {
		mimeType = "application/octet-stream"
	}
	return &FileDownload{
		File:      handle,
		Filename:  file.Name,
		MimeType:  mimeType,
		SizeBytes: info.Size(),
	}, nil
}

func (s *FileService) visibleFile(ctx context.Context, id string, admin bool) (*models.File, error) {
	file, err := s.files.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errHidden("file")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	if !admin && file.HiddenFromPublic() {
		return nil, errHidden("file")
	}
	return file, nil
}

func (s *FileService) authorize(ctx context.Context, studyID string, actor *models.JWTClaims) (*models.StudyRecord, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	admin := actor.IsAdmin()
	study, err := visibleStudy(ctx, s.studies, studyID, admin)
	if err != nil {
		return nil, err
	}
	if admin {
		return study, nil
	}
	ok, err := s.studies.IsAuthor(ctx, studyID, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check authorship")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only authors may change this study's files")
	}
	return study, nil
}

// countOnce reports whether the session has not been counted for the file yet.
func (s *FileService) countOnce(ctx context.Context, sessionID string, kind repository.HistoryKind, fileID string) bool {
	if sessionID == "" || s.sessions == nil {
		return false
	}
	fresh, err := s.sessions.Mark(ctx, sessionID, kind, fileID)
	if err != nil {
		s.logger.Warn("session counter unavailable", zap.String("kind", string(kind)), zap.Error(err))
		return false
	}
	return fresh
}

func (s *FileService) extractPDF(content io.ReadSeeker, file *models.File) error {
	if s.extractor == nil {
		return nil
	}
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	result, err := s.extractor.Extract(content)
	if err != nil && !errors.Is(err, extract.ErrNoMetadata) {
		s.logger.Warn("pdf extraction failed", zap.String("name", file.Name), zap.Error(err))
		return nil
	}
	if result == nil {
		return nil
	}
	file.Content = result.Content
	if file.PubYear == nil && result.PubYear > 0 {
		year := result.PubYear
		file.PubYear = &year
	}
	return nil
}

func (s *FileService) uploadSettings() config.UploadsConfig {
	if s.config != nil {
		if cfg := s.config.Current(); cfg != nil {
			return cfg.Uploads
		}
	}
	return config.UploadsConfig{AllowedExtensions: []string{".pdf", ".mp4", ".png"}}
}

func (s *FileService) apiPrefix() string {
	if s.config != nil {
		if cfg := s.config.Current(); cfg != nil && cfg.APIPrefix != "" {
			return cfg.APIPrefix
		}
	}
	return "/api/v1"
}

func isForcedType(fileType int) bool {
	for _, t := range forcedFileTypes {
		if t == fileType {
			return true
		}
	}
	return false
}

func extensionAllowed(ext string, allowed []string) bool {
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if !strings.HasPrefix(a, ".") {
			a = "." + a
		}
		if a == ext {
			return true
		}
	}
	return false
}

func hashStream(r io.ReadSeeker) (string, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// sanitizeFilename keeps letters, digits, dashes and underscores in the stem and lowercases the extension.
func sanitizeFilename(name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	var b strings.Builder
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	cleaned := strings.Trim(b.String(), "_")
	if cleaned == "" {
		cleaned = "file"
	}
	return cleaned + strings.ToLower(ext)
}
