package sink

import (
	"context"
	"sync"

	"github.com/feichai0017/ingest-triage/internal/models"
)

// MemorySink 内存落地，测试和本地运行用
type MemorySink struct {
	mu         sync.Mutex
	Results    map[string]*models.CommittedResult
	Reviews    map[string]*models.ReviewTask
	Rejections map[string]*models.RejectionRecord
}

func NewMemorySink() *MemorySink {
	return &MemorySink{
		Results:    make(map[string]*models.CommittedResult),
		Reviews:    make(map[string]*models.ReviewTask),
		Rejections: make(map[string]*models.RejectionRecord),
	}
}

func (s *MemorySink) Commit(_ context.Context, result *models.CommittedResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Results[result.DocumentID] = result
	return nil
}

func (s *MemorySink) FlagForReview(_ context.Context, task *models.ReviewTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reviews[task.DocumentID] = task
	return nil
}

func (s *MemorySink) Reject(_ context.Context, record *models.RejectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Rejections[record.DocumentID] = record
	return nil
}

func (s *MemorySink) Existing(_ context.Context, documentID string) (models.TerminalState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Results[documentID]; ok {
		return models.StateCommitted, true, nil
	}
	if _, ok := s.Reviews[documentID]; ok {
		return models.StateNeedsReview, true, nil
	}
	if _, ok := s.Rejections[documentID]; ok {
		return models.StateRejected, true, nil
	}
	return "", false, nil
}

func (s *MemorySink) Clear(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Results, documentID)
	delete(s.Reviews, documentID)
	delete(s.Rejections, documentID)
	return nil
}
