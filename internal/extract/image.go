package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"unicode"

	"github.com/disintegration/imaging"

	"github.com/feichai0017/ingest-triage/config"
	"github.com/feichai0017/ingest-triage/internal/extract/ocr"
	"github.com/feichai0017/ingest-triage/internal/models"
	"github.com/feichai0017/ingest-triage/internal/pdfscan"
	"github.com/feichai0017/ingest-triage/pkg/logger"
)

func firstEmbeddedImage(content []byte) []byte {
	embedded := pdfscan.EmbeddedJPEGs(content, 1)
	if len(embedded) == 0 {
		return nil
	}
	return embedded[0]
}

// 语言预判参数
const (
	sampleWidth       = 600  // 预判用的降采样宽度
	cyrillicLangRatio = 0.15 // 西里尔字符占比超过该值选用目标语言包
	latinLangRatio    = 0.15 // 拉丁字符占比，用于 mixed 判定
)

// ImageExtractor 图像 OCR 提取器。质量门裁决 enhance 时先过增强链。
type ImageExtractor struct {
	engine ocr.Engine
	cfg    config.OCRConfig
	logger logger.Logger
}

func NewImageExtractor(engine ocr.Engine, cfg config.OCRConfig, log logger.Logger) *ImageExtractor {
	return &ImageExtractor{engine: engine, cfg: cfg, logger: log}
}

// Available 引擎未配置时显式降级，而不是静默回退
func (e *ImageExtractor) Available() bool { return e.engine != nil }

func (e *ImageExtractor) Extract(ctx context.Context, req *Request) (*models.ExtractionResult, error) {
	enhance := req.Quality.Decision == models.DecisionEnhance

	data := req.Document.Content
	if req.Detection.Category == models.CategoryPDFImage {
		// 纯图 PDF：OCR 第一个可解码的内嵌图像
		if embedded := firstEmbeddedImage(req.Document.Content); embedded != nil {
			data = embedded
		}
	}

	text, lang, confidence, err := e.recognize(ctx, data, enhance)
	if err != nil {
		return nil, err
	}

	method := models.MethodOCR
	if enhance {
		method = models.MethodOCREnhanced
	}

	res := &models.ExtractionResult{
		Text:     text,
		Language: lang,
		Method:   method,
		Metadata: map[string]interface{}{
			"ocrEngine":     e.engine.Name(),
			"ocrConfidence": confidence,
		},
	}

	if len(strings.Fields(text)) < e.cfg.MinTokens {
		res.Failed = true
		res.FailureReason = "ocr produced too little text"
	}
	return res, nil
}

// recognize 解码、可选增强、语言路由、整图识别。供混合内容提取器按图复用。
func (e *ImageExtractor) recognize(ctx context.Context, data []byte, enhance bool) (string, models.Language, float64, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// 解码失败不可重试
		return "", models.LanguageUnspecified, 0, fmt.Errorf("failed to decode image: %w", err)
	}

	if enhance {
		img, err = applyEnhancement(img)
		if err != nil {
			return "", models.LanguageUnspecified, 0, fmt.Errorf("failed to enhance image: %w", err)
		}
	}

	languages := e.routeLanguages(ctx, img)

	result, err := e.engine.Recognize(ctx, img, languages)
	if err != nil {
		// 引擎错误按瞬时故障处理，交给任务重试
		return "", models.LanguageUnspecified, 0, transient(err)
	}

	return result.Text, detectLanguage(result.Text), result.MeanConfidence, nil
}

// routeLanguages 廉价预判：对降采样图跑一次组合语言包，看西里尔字符占比
// 决定全图识别用目标语言组合包还是纯英文包。
func (e *ImageExtractor) routeLanguages(ctx context.Context, img image.Image) []string {
	combined := []string{e.cfg.TargetLanguage, "eng"}

	sample := img
	if img.Bounds().Dx() > sampleWidth {
		sample = imaging.Resize(img, sampleWidth, 0, imaging.Lanczos)
	}

	result, err := e.engine.Recognize(ctx, sample, combined)
	if err != nil {
		e.logger.Warn("Language pre-check failed, defaulting to combined profile", logger.Error(err))
		return combined
	}

	if cyrillicRatio(result.Text) >= cyrillicLangRatio {
		return combined
	}
	return []string{"eng"}
}

// detectLanguage 按字符分布归类提取文本的语言
func detectLanguage(text string) models.Language {
	var cyrillic, latin, letters int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	if letters == 0 {
		return models.LanguageUnspecified
	}

	cyrRatio := float64(cyrillic) / float64(letters)
	latRatio := float64(latin) / float64(letters)
	switch {
	case cyrRatio >= cyrillicLangRatio && latRatio >= latinLangRatio:
		return models.LanguageMixed
	case cyrRatio >= cyrillicLangRatio:
		return models.LanguageMongolian
	case latRatio > 0:
		return models.LanguageEnglish
	default:
		return models.LanguageUnspecified
	}
}

func cyrillicRatio(text string) float64 {
	var cyrillic, letters int
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.Is(unicode.Cyrillic, r) {
				cyrillic++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(cyrillic) / float64(letters)
}
