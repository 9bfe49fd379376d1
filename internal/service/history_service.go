package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/research-archive-api/internal/repository"
	"github.com/noah-isme/research-archive-api/pkg/jobs"
)

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type historyRecorder interface {
	Record(ctx context.Context, kind repository.HistoryKind, userID string, fileIDs []string, at time.Time) error
}

// HistoryEntry is the payload of a history job.
type HistoryEntry struct {
	Kind    repository.HistoryKind
	UserID  string
	FileIDs []string
	At      time.Time
}

// HistoryService hands access and preview history to the background queue.
type HistoryService struct {
	queue  jobDispatcher
	logger *zap.Logger
	now    func() time.Time
}

// NewHistoryService constructs a HistoryService.
func NewHistoryService(queue jobDispatcher, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{queue: queue, logger: logger, now: time.Now}
}

// Record schedules a history write. History is best-effort: a full or stopped queue drops the entry.
func (s *HistoryService) Record(kind repository.HistoryKind, userID string, fileIDs ...string) {
	if s == nil || s.queue == nil || userID == "" || len(fileIDs) == 0 {
		return
	}
	entry := HistoryEntry{Kind: kind, UserID: userID, FileIDs: fileIDs, At: s.now().UTC()}
	if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: string(kind), Payload: entry}); err != nil {
		s.logger.Warn("history entry dropped", zap.String("kind", string(kind)), zap.String("user_id", userID), zap.Error(err))
	}
}

// HistoryWorker bridges queue jobs to the history repository.
type HistoryWorker struct {
	repo   historyRecorder
	logger *zap.Logger
}

// NewHistoryWorker constructs a worker.
func NewHistoryWorker(repo historyRecorder, logger *zap.Logger) *HistoryWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryWorker{repo: repo, logger: logger}
}

// Handle processes a queue job.
func (w *HistoryWorker) Handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(HistoryEntry)
	if !ok {
		w.logger.Error("unexpected history payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	if err := w.repo.Record(ctx, entry.Kind, entry.UserID, entry.FileIDs, entry.At); err != nil {
		return fmt.Errorf("record %s history: %w", entry.Kind, err)
	}
	return nil
}
