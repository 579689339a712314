package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/feichai0017/ingest-triage/internal/classify"
	"github.com/feichai0017/ingest-triage/internal/confidence"
	"github.com/feichai0017/ingest-triage/internal/extract"
	"github.com/feichai0017/ingest-triage/internal/models"
	"github.com/feichai0017/ingest-triage/internal/quality"
	"github.com/feichai0017/ingest-triage/internal/review"
	"github.com/feichai0017/ingest-triage/pkg/logger"
)

// ExtractorSource 提取器路由入口，测试时可注入探针
type ExtractorSource interface {
	ForCategory(cat models.Category) extract.Extractor
}

// Pipeline 单文档的五阶段处理：分类 -> 质量门 -> 提取 -> 置信度 -> 路由。
// 阶段严格顺序执行，所有中间产物都是任务内局部状态。
type Pipeline struct {
	classifier *classify.Classifier
	quality    *quality.Assessor
	extractors ExtractorSource
	confidence *confidence.Assessor
	router     *review.Router
	logger     logger.Logger
}

func New(
	classifier *classify.Classifier,
	qualityAssessor *quality.Assessor,
	extractors ExtractorSource,
	confidenceAssessor *confidence.Assessor,
	router *review.Router,
	log logger.Logger,
) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		quality:    qualityAssessor,
		extractors: extractors,
		confidence: confidenceAssessor,
		router:     router,
		logger:     log,
	}
}

// Run 执行五个阶段并落地终态。返回 error 的情况只有两类：
// 瞬时提取故障（调用方重试）和落地失败；其余一律收敛到某个终态。
func (p *Pipeline) Run(ctx context.Context, doc *models.Document) (*review.Outcome, error) {
	start := time.Now()
	det := p.classifier.Classify(doc)
	observeStage("classify", start)
	recordCategory(det.Category)

	// 不可读输入直接拒绝，不重试
	if det.Category == models.CategoryUnknown && det.Confidence == 0 {
		qa := &models.QualityAssessment{
			Score:    0,
			Decision: models.DecisionReject,
			Issues:   []string{"unreadable or empty file"},
		}
		return p.terminal(p.router.Reject(ctx, doc, qa, "unreadable input"))
	}

	start = time.Now()
	qa := p.quality.Assess(doc, det)
	observeStage("quality", start)

	if qa.Decision == models.DecisionReject {
		// 质量门拒绝后任何提取器都不会被调用
		return p.terminal(p.router.Reject(ctx, doc, qa, "quality below threshold"))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	extractor := p.extractors.ForCategory(det.Category)
	res, err := extractor.Extract(ctx, &extract.Request{
		Document:  doc,
		Detection: det,
		Quality:   qa,
	})
	observeStage("extract", start)

	if err != nil {
		if errors.Is(err, extract.ErrTransient) {
			// 交给任务队列按退避重试
			return nil, err
		}
		// 任务级超时或停机由调用方定性，不在这里落终态
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if errors.Is(err, extract.ErrUnavailable) {
			return p.terminal(p.router.FlagForReview(ctx, doc, qa, nil, "extractor unavailable"))
		}
		return p.terminal(p.router.FlagForReview(ctx, doc, qa, nil, fmt.Sprintf("extraction failed: %v", err)))
	}

	start = time.Now()
	conf := p.confidence.Assess(res.Text, res.Language)
	observeStage("confidence", start)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	outcome, err := p.router.Route(ctx, doc, qa, res, conf)
	observeStage("route", start)
	return p.terminal(outcome, err)
}

func (p *Pipeline) terminal(outcome *review.Outcome, err error) (*review.Outcome, error) {
	if err != nil {
		return nil, err
	}
	recordOutcome(outcome.State)
	return outcome, nil
}
