package extract

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/ingest-triage/internal/models"
	"github.com/feichai0017/ingest-triage/internal/pdfscan"
	"github.com/feichai0017/ingest-triage/pkg/logger"
)

const (
	maxEmbeddedImages = 16
	ocrConcurrency    = 4
)

// MixedExtractor 混合内容提取器：文本层 + 逐个内嵌图像 OCR。
// 单张图失败只留标记，不拖垮整个文档。
type MixedExtractor struct {
	text   *TextExtractor
	image  *ImageExtractor
	logger logger.Logger
}

func NewMixedExtractor(text *TextExtractor, image *ImageExtractor, log logger.Logger) *MixedExtractor {
	return &MixedExtractor{text: text, image: image, logger: log}
}

// Available 混合路径依赖 OCR 能力
func (e *MixedExtractor) Available() bool { return e.image.Available() }

func (e *MixedExtractor) Extract(ctx context.Context, req *Request) (*models.ExtractionResult, error) {
	doc := req.Document
	enhance := req.Quality.Decision == models.DecisionEnhance

	textLayer, err := pdfscan.ExtractText(doc.Content)
	if err != nil {
		e.logger.Warn("Text layer extraction failed, continuing with embedded images",
			logger.String("documentId", doc.ID),
			logger.Error(err),
		)
		textLayer = ""
	}

	images := pdfscan.EmbeddedJPEGs(doc.Content, maxEmbeddedImages)
	blocks := make([]string, len(images))
	confidences := make([]float64, len(images))
	failures := make([]bool, len(images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ocrConcurrency)
	for i, data := range images {
		i, data := i, data
		g.Go(func() error {
			text, _, conf, err := e.image.recognize(gctx, data, enhance)
			if err != nil || strings.TrimSpace(text) == "" {
				if err != nil {
					e.logger.Warn("Embedded image OCR failed",
						logger.String("documentId", doc.ID),
						logger.Int("image", i+1),
						logger.Error(err),
					)
				}
				blocks[i] = fmt.Sprintf("Image %d: [OCR failed]", i+1)
				failures[i] = true
				return nil
			}
			blocks[i] = fmt.Sprintf("Image %d: %s", i+1, strings.TrimSpace(text))
			confidences[i] = conf
			return nil
		})
	}
	// 工作函数不返回错误，Wait 只等待全部完成
	_ = g.Wait()

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(textLayer))
	for _, block := range blocks {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(block)
	}
	combined := sb.String()

	failureCount := 0
	for _, failed := range failures {
		if failed {
			failureCount++
		}
	}

	res := &models.ExtractionResult{
		Text:     combined,
		Language: detectLanguage(combined),
		Method:   models.MethodMixed,
		Metadata: map[string]interface{}{
			"embeddedImages": len(images),
			"imageFailures":  failureCount,
			"ocrConfidences": confidences,
		},
	}

	// 文本层为空且所有图都失败才算整体失败
	if strings.TrimSpace(textLayer) == "" && len(images) > 0 && failureCount == len(images) {
		res.Failed = true
		res.FailureReason = "no text layer and all embedded images failed OCR"
	}
	return res, nil
}
