package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/ingest-triage/internal/extract"
	"github.com/feichai0017/ingest-triage/internal/models"
	"github.com/feichai0017/ingest-triage/internal/pipeline"
	"github.com/feichai0017/ingest-triage/internal/review"
	"github.com/feichai0017/ingest-triage/pkg/logger"
	"github.com/feichai0017/ingest-triage/pkg/queue"
	"github.com/feichai0017/ingest-triage/pkg/storage"
)

// ResultStore 在路由终点写接口之上增加 Clear，重处理前清除旧终态
type ResultStore interface {
	review.ResultSink
	Clear(ctx context.Context, documentID string) error
}

// StatusWriter 任务终态回写，状态查询接口优先读这里
type StatusWriter interface {
	SaveStatus(ctx context.Context, status *queue.TaskStatus) error
}

// maxRetryDelay 指数退避的封顶值
const maxRetryDelay = 10 * time.Minute

// retryDelay 瞬时故障按指数退避：1s、2s、4s……封顶 10 分钟
func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	if n >= 20 {
		return maxRetryDelay
	}
	d := time.Duration(1<<uint(n)) * time.Second
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

// TriageWorker 从队列消费分诊任务：取回字节、执行管道、落终态。
// 同一文档重复投递是幂等的，除非任务显式要求重处理。
type TriageWorker struct {
	BaseWorker
	pipeline   *pipeline.Pipeline
	storage    storage.Storage
	store      ResultStore
	statuses   StatusWriter
	jobTimeout time.Duration
}

func NewTriageWorker(
	cfg *Config,
	p *pipeline.Pipeline,
	store ResultStore,
	stor storage.Storage,
	statuses StatusWriter,
	jobTimeout time.Duration,
	log logger.Logger,
) (*TriageWorker, error) {
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency:    cfg.Concurrency,
			Queues:         cfg.Queues,
			RetryDelayFunc: retryDelay,
		},
	)

	w := &TriageWorker{
		BaseWorker: BaseWorker{
			server:   server,
			mux:      asynq.NewServeMux(),
			logger:   log,
			stopChan: make(chan struct{}),
		},
		pipeline:   p,
		storage:    stor,
		store:      store,
		statuses:   statuses,
		jobTimeout: jobTimeout,
	}

	w.registerHandlers()
	return w, nil
}

func (w *TriageWorker) registerHandlers() {
	w.mux.HandleFunc(queue.TaskTypeDocumentTriage, w.handleTriage)
}

func (w *TriageWorker) handleTriage(ctx context.Context, t *asynq.Task) error {
	var job queue.TriageJob
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		w.logger.Error("Failed to unmarshal triage job",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		// 载荷损坏重试也没用
		return fmt.Errorf("unmarshal triage job: %v: %w", err, asynq.SkipRetry)
	}

	if job.DocumentID == "" || job.ObjectKey == "" {
		return fmt.Errorf("invalid triage job: missing document id or object key: %w", asynq.SkipRetry)
	}

	started := time.Now()
	w.logger.Info("Processing triage job",
		logger.String("documentId", job.DocumentID),
		logger.String("filename", job.Filename),
		logger.Bool("reprocess", job.Reprocess),
	)

	// 幂等检查：已有终态记录的文档不再重复处理
	if job.Reprocess {
		if err := w.store.Clear(ctx, job.DocumentID); err != nil {
			return fmt.Errorf("clear previous outcome: %w", err)
		}
	} else {
		state, exists, err := w.store.Existing(ctx, job.DocumentID)
		if err != nil {
			return fmt.Errorf("check existing outcome: %w", err)
		}
		if exists {
			w.logger.Info("Document already has a terminal outcome, skipping",
				logger.String("documentId", job.DocumentID),
				logger.String("state", string(state)),
			)
			w.writeResult(t, string(state))
			return nil
		}
	}

	doc, err := w.fetchDocument(ctx, &job)
	if err != nil {
		// 对象存储抖动可重试
		return fmt.Errorf("fetch document %s: %w", job.DocumentID, err)
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	outcome, err := w.pipeline.Run(jobCtx, doc)
	if err != nil {
		if herr := w.handlePipelineError(ctx, jobCtx, doc, err); herr != nil {
			return herr
		}
		// 异常路径已收敛到人工审查，对队列而言任务完成
		w.saveFinalStatus(ctx, job.DocumentID, started)
		w.writeResult(t, string(models.StateNeedsReview))
		return nil
	}

	w.logger.Info("Triage job finished",
		logger.String("documentId", job.DocumentID),
		logger.String("state", string(outcome.State)),
		logger.String("reason", outcome.Reason),
	)
	w.saveFinalStatus(ctx, job.DocumentID, started)
	w.writeResult(t, string(outcome.State))
	return nil
}

// saveFinalStatus 处理结束后回写任务状态，失败只记日志不影响终态
func (w *TriageWorker) saveFinalStatus(ctx context.Context, documentID string, started time.Time) {
	if w.statuses == nil {
		return
	}
	status := &queue.TaskStatus{
		TaskID:     documentID,
		Status:     "completed",
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if err := w.statuses.SaveStatus(ctx, status); err != nil {
		w.logger.Warn("Failed to save final task status",
			logger.String("documentId", documentID),
			logger.Error(err),
		)
	}
}

// handlePipelineError 错误分类：超时和重试耗尽转人工审查，
// 瞬时故障交给队列按退避重试。
func (w *TriageWorker) handlePipelineError(ctx, jobCtx context.Context, doc *models.Document, err error) error {
	// worker 正在停机，把任务还给队列
	if ctx.Err() != nil {
		return err
	}

	if jobCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		w.logger.Warn("Triage job exceeded processing deadline",
			logger.String("documentId", doc.ID),
			logger.Error(err),
		)
		return w.flagForReview(ctx, doc, "processing timeout")
	}

	if errors.Is(err, extract.ErrTransient) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		if retried >= maxRetry {
			w.logger.Warn("Extractor retries exhausted",
				logger.String("documentId", doc.ID),
				logger.Int("retries", retried),
				logger.Error(err),
			)
			return w.flagForReview(ctx, doc, "extractor exhausted retries")
		}
		return err
	}

	// 终态落地失败等其他错误走常规重试
	return err
}

func (w *TriageWorker) fetchDocument(ctx context.Context, job *queue.TriageJob) (*models.Document, error) {
	rc, err := w.storage.Get(ctx, job.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", job.ObjectKey, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", job.ObjectKey, err)
	}

	return &models.Document{
		ID:          job.DocumentID,
		Filename:    job.Filename,
		ContentType: job.ContentType,
		Size:        int64(len(content)),
		Content:     content,
		Source:      job.Source,
		Department:  job.Department,
	}, nil
}

// flagForReview 异常终止路径：文档没有经过完整评估就进入人工审查
func (w *TriageWorker) flagForReview(ctx context.Context, doc *models.Document, reason string) error {
	task := &models.ReviewTask{
		DocumentID: doc.ID,
		Reason:     reason,
		Status:     models.ReviewPending,
		CreatedAt:  time.Now(),
	}
	if err := w.store.FlagForReview(ctx, task); err != nil {
		return fmt.Errorf("flag for review: %w", err)
	}
	return nil
}

// writeResult 把终态回写到任务结果，状态查询接口可见
func (w *TriageWorker) writeResult(t *asynq.Task, state string) {
	rw := t.ResultWriter()
	if rw == nil {
		return
	}
	if _, err := rw.Write([]byte(fmt.Sprintf(`{"state":%q}`, state))); err != nil {
		w.logger.Error("Failed to write task result", logger.Error(err))
	}
}

func (w *TriageWorker) Start(ctx context.Context) error {
	go func() {
		if err := w.server.Run(w.mux); err != nil {
			w.logger.Error("Worker server stopped", logger.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}
