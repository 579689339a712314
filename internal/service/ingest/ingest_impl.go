package ingest

import (
	"context"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/ingest-triage/internal/models"
	"github.com/feichai0017/ingest-triage/internal/validator"
	"github.com/feichai0017/ingest-triage/pkg/logger"
	"github.com/feichai0017/ingest-triage/pkg/queue"
	"github.com/feichai0017/ingest-triage/pkg/storage"
)

// OutcomeReader 终态只读视图，状态查询用
type OutcomeReader interface {
	Existing(ctx context.Context, documentID string) (models.TerminalState, bool, error)
	GetResult(ctx context.Context, documentID string) (*models.CommittedResult, error)
	GetReviewTask(ctx context.Context, documentID string) (*models.ReviewTask, error)
	GetRejection(ctx context.Context, documentID string) (*models.RejectionRecord, error)
}

type Service struct {
	validator *validator.DocumentValidator
	storage   storage.Storage
	queue     queue.Queue
	outcomes  OutcomeReader
	logger    logger.Logger

	maxConcurrent int
}

func NewService(
	v *validator.DocumentValidator,
	stor storage.Storage,
	q queue.Queue,
	outcomes OutcomeReader,
	log logger.Logger,
) IngestService {
	return &Service{
		validator:     v,
		storage:       stor,
		queue:         q,
		outcomes:      outcomes,
		logger:        log,
		maxConcurrent: 5,
	}
}

// Submit 接收单个文件：验证、入库、建提交记录、排队。
// 返回时文件已持久化，处理是异步的。
func (s *Service) Submit(
	ctx context.Context,
	file multipart.File,
	header *multipart.FileHeader,
	opts SubmitOptions,
) (*SubmitResult, error) {
	s.logger.Info("Receiving document",
		logger.String("filename", header.Filename),
		logger.Int64("size", header.Size),
		logger.String("source", opts.Source),
	)

	res, err := s.validator.ValidateFile(header)
	if err != nil {
		return nil, fmt.Errorf("validate file: %w", err)
	}
	if !res.IsValid {
		s.logger.Warn("Document rejected at intake",
			logger.String("filename", header.Filename),
			logger.Any("errors", res.Errors),
		)
		return nil, fmt.Errorf("file rejected at intake: %s", intakeErrors(res.Errors))
	}

	documentID := uuid.New().String()
	objectKey := fmt.Sprintf("ingest/%s%s", documentID, strings.ToLower(filepath.Ext(header.Filename)))

	if _, err := s.storage.Store(ctx, file, objectKey); err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	job := &queue.TriageJob{
		DocumentID:  documentID,
		ObjectKey:   objectKey,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Source:      opts.Source,
		Department:  opts.Department,
		Priority:    opts.Priority,
		CreatedAt:   time.Now(),
	}

	if err := s.queue.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("save submission record: %w", err)
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue triage job: %w", err)
	}

	s.logger.Info("Document queued for triage",
		logger.String("documentId", documentID),
		logger.String("objectKey", objectKey),
	)

	return &SubmitResult{
		DocumentID: documentID,
		ObjectKey:  objectKey,
		Status:     "queued",
		FileInfo:   res.FileInfo,
	}, nil
}

// SubmitBatch 批量提交，限制并发。单个文件失败不影响其余文件，
// 失败位置返回 nil，错误汇总返回。
func (s *Service) SubmitBatch(
	ctx context.Context,
	files []*multipart.FileHeader,
	opts SubmitOptions,
) ([]*SubmitResult, error) {
	results := make([]*SubmitResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for i, header := range files {
		g.Go(func() error {
			f, err := header.Open()
			if err != nil {
				return fmt.Errorf("open %s: %w", header.Filename, err)
			}
			defer f.Close()

			res, err := s.Submit(gctx, f, header, opts)
			if err != nil {
				return fmt.Errorf("submit %s: %w", header.Filename, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Status 查询文档状态。有终态记录时返回记录本身，
// 否则回落到队列里的任务状态。
func (s *Service) Status(ctx context.Context, documentID string) (*DocumentStatus, error) {
	state, exists, err := s.outcomes.Existing(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("check outcome: %w", err)
	}

	status := &DocumentStatus{DocumentID: documentID}

	if exists {
		status.State = string(state)
		switch state {
		case models.StateCommitted:
			status.Result, err = s.outcomes.GetResult(ctx, documentID)
		case models.StateNeedsReview:
			status.ReviewTask, err = s.outcomes.GetReviewTask(ctx, documentID)
		case models.StateRejected:
			status.Rejection, err = s.outcomes.GetRejection(ctx, documentID)
		}
		if err != nil {
			return nil, fmt.Errorf("load outcome record: %w", err)
		}
		return status, nil
	}

	task, err := s.queue.GetTaskStatus(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("document %s not found: %w", documentID, err)
	}
	status.State = string(models.StatePending)
	status.Task = task
	return status, nil
}

// Reprocess 按提交记录重新排队。worker 会先清除旧终态再走完整管道。
func (s *Service) Reprocess(ctx context.Context, documentID string) error {
	job, err := s.queue.GetJob(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load submission record: %w", err)
	}

	job.Reprocess = true
	job.CreatedAt = time.Now()

	if err := s.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue reprocess job: %w", err)
	}

	s.logger.Info("Document queued for reprocessing",
		logger.String("documentId", documentID),
	)
	return nil
}

func intakeErrors(errs []validator.ValidationError) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}
