package extract

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/feichai0017/ingest-triage/config"
	"github.com/feichai0017/ingest-triage/internal/extract/ocr"
	"github.com/feichai0017/ingest-triage/internal/models"
	"github.com/feichai0017/ingest-triage/pkg/logger"
)

var (
	// ErrTransient 引擎资源耗尽或超时，任务可重试
	ErrTransient = errors.New("transient extractor failure")
	// ErrUnavailable 提取能力未配置或已降级
	ErrUnavailable = errors.New("extractor unavailable")
)

// transient 标记错误为可重试
func transient(err error) error {
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

// Request 提取器的统一输入
type Request struct {
	Document  *models.Document
	Detection *models.TypeDetectionResult
	Quality   *models.QualityAssessment
}

// Extractor 按类别选择的提取策略。Available 显式暴露降级状态，
// 取代靠导入失败静默回退的做法。
type Extractor interface {
	Extract(ctx context.Context, req *Request) (*models.ExtractionResult, error)
	Available() bool
}

// Registry 持有四种提取策略，ForCategory 是唯一的路由入口
type Registry struct {
	text    *TextExtractor
	image   *ImageExtractor
	cad     *CADExtractor
	mixed   *MixedExtractor
	timeout time.Duration
	minRune int
}

func NewRegistry(cfg *config.Config, engine ocr.Engine, log logger.Logger) *Registry {
	text := NewTextExtractor(log)
	image := NewImageExtractor(engine, cfg.OCR, log)
	return &Registry{
		text:    text,
		image:   image,
		cad:     NewCADExtractor(log),
		mixed:   NewMixedExtractor(text, image, log),
		timeout: cfg.Pipeline.ExtractTimeout,
		minRune: cfg.Pipeline.MinTextRunes,
	}
}

// ForCategory 路由到类别对应的提取器。unknown 走文本兜底，
// 产出过短会照常判为失败并进入人工审查。
func (r *Registry) ForCategory(cat models.Category) Extractor {
	var inner Extractor
	switch cat {
	case models.CategoryImage, models.CategoryPDFImage:
		inner = r.image
	case models.CategoryCAD:
		inner = r.cad
	case models.CategoryPDFMixed:
		inner = r.mixed
	default:
		inner = r.text
	}
	return &bounded{inner: inner, timeout: r.timeout, minRune: r.minRune}
}

// bounded 给提取器加上超时和最短产出约束。超时返回失败结果而不是挂起。
type bounded struct {
	inner   Extractor
	timeout time.Duration
	minRune int
}

func (b *bounded) Available() bool { return b.inner.Available() }

func (b *bounded) Extract(ctx context.Context, req *Request) (*models.ExtractionResult, error) {
	if !b.inner.Available() {
		return nil, ErrUnavailable
	}

	// 任务级截止时间属于调用方，不能伪装成提取器自身超时
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type outcome struct {
		res *models.ExtractionResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := b.inner.Extract(ctx, req)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return nil, o.err
		}
		return b.finalize(o.res), nil
	case <-ctx.Done():
		if err := parent.Err(); err != nil {
			return nil, err
		}
		return &models.ExtractionResult{
			Language:      models.LanguageUnspecified,
			Failed:        true,
			FailureReason: "extraction timed out",
		}, nil
	}
}

// finalize 产出文本低于最低有效长度时强制判失败，与类别无关。
// CAD 的合成占位文本天然高于该阈值。
func (b *bounded) finalize(res *models.ExtractionResult) *models.ExtractionResult {
	if res == nil {
		return &models.ExtractionResult{
			Language:      models.LanguageUnspecified,
			Failed:        true,
			FailureReason: "extractor returned no result",
		}
	}
	if !res.Failed && utf8.RuneCountInString(res.Text) < b.minRune {
		res.Failed = true
		res.FailureReason = "extracted text below minimum length"
	}
	return res
}
