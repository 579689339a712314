package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/feichai0017/ingest-triage/internal/models"
	"github.com/feichai0017/ingest-triage/pkg/logger"
)

// ResultSink 管道产出的落地接口，存储技术由实现方决定
type ResultSink interface {
	Commit(ctx context.Context, result *models.CommittedResult) error
	FlagForReview(ctx context.Context, task *models.ReviewTask) error
	Reject(ctx context.Context, record *models.RejectionRecord) error
	// Existing 幂等检查：文档是否已有终态记录
	Existing(ctx context.Context, documentID string) (models.TerminalState, bool, error)
}

// Outcome 一次路由的终态
type Outcome struct {
	State  models.TerminalState
	Reason string
}

// Router 终点决策：提交、拒绝或转人工审查。每个文档恰好落在
// 一个终态上，没有静默丢弃路径。
type Router struct {
	sink            ResultSink
	reviewThreshold float64
	logger          logger.Logger
}

func NewRouter(sink ResultSink, reviewThreshold float64, log logger.Logger) *Router {
	return &Router{
		sink:            sink,
		reviewThreshold: reviewThreshold,
		logger:          log,
	}
}

// Reject 质量门拒绝，终态。只记录拒绝原因，不创建审查任务——
// 这是明确的否定结论，不是"需要人看一眼"。
func (r *Router) Reject(ctx context.Context, doc *models.Document, qa *models.QualityAssessment, reason string) (*Outcome, error) {
	record := &models.RejectionRecord{
		DocumentID: doc.ID,
		Reason:     reason,
		Issues:     qa.Issues,
		RejectedAt: time.Now(),
	}
	if err := r.sink.Reject(ctx, record); err != nil {
		return nil, fmt.Errorf("persist rejection: %w", err)
	}

	r.logger.Info("Document rejected",
		logger.String("documentId", doc.ID),
		logger.String("reason", reason),
		logger.Float64("qualityScore", qa.Score),
	)
	return &Outcome{State: models.StateRejected, Reason: reason}, nil
}

// Route 提取完成后的路由：失败 -> 审查；低置信 -> 审查；否则提交。
func (r *Router) Route(
	ctx context.Context,
	doc *models.Document,
	qa *models.QualityAssessment,
	res *models.ExtractionResult,
	conf *models.ConfidenceScore,
) (*Outcome, error) {
	if res.Failed {
		reason := "extraction failed"
		if res.FailureReason != "" {
			reason = fmt.Sprintf("extraction failed: %s", res.FailureReason)
		}
		return r.FlagForReview(ctx, doc, qa, conf, reason)
	}

	if conf.Value < r.reviewThreshold {
		return r.FlagForReview(ctx, doc, qa, conf, "low confidence")
	}

	result := &models.CommittedResult{
		DocumentID:  doc.ID,
		Text:        res.Text,
		Language:    res.Language,
		Method:      res.Method,
		Confidence:  conf.Value,
		Metadata:    res.Metadata,
		CommittedAt: time.Now(),
	}
	if err := r.sink.Commit(ctx, result); err != nil {
		return nil, fmt.Errorf("commit result: %w", err)
	}

	r.logger.Info("Document committed",
		logger.String("documentId", doc.ID),
		logger.String("method", string(res.Method)),
		logger.Float64("confidence", conf.Value),
	)
	return &Outcome{State: models.StateCommitted}, nil
}

// FlagForReview 创建恰好一个人工审查任务
func (r *Router) FlagForReview(
	ctx context.Context,
	doc *models.Document,
	qa *models.QualityAssessment,
	conf *models.ConfidenceScore,
	reason string,
) (*Outcome, error) {
	task := &models.ReviewTask{
		DocumentID: doc.ID,
		Reason:     reason,
		CreatedAt:  time.Now(),
		Status:     models.ReviewPending,
	}
	if qa != nil {
		task.QualityScore = qa.Score
	}
	if conf != nil {
		task.ConfidenceScore = conf.Value
	}

	if err := r.sink.FlagForReview(ctx, task); err != nil {
		return nil, fmt.Errorf("create review task: %w", err)
	}

	r.logger.Info("Document flagged for review",
		logger.String("documentId", doc.ID),
		logger.String("reason", strings.TrimSpace(reason)),
	)
	return &Outcome{State: models.StateNeedsReview, Reason: reason}, nil
}
