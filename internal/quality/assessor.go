package quality

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/feichai0017/ingest-triage/config"
	"github.com/feichai0017/ingest-triage/internal/models"
	"github.com/feichai0017/ingest-triage/internal/pdfscan"
)

// 各项惩罚。裁决只是分数对两个阈值的映射，所以惩罚大小
// 直接决定哪类缺陷会把文档推进 enhance / reject 区间。
const (
	penaltyOversize       = 0.30
	penaltyUnreadableRast = 0.50
	penaltyLowResolution  = 0.30
	penaltyLowContrast    = 0.20
	penaltyBlurPoor       = 0.55
	penaltyBlurEnhance    = 0.35
	penaltyLowDensity     = 0.35
)

// Assessor 提取前质量门。给定输入是纯函数，便于独立测试。
type Assessor struct {
	cfg config.PipelineConfig
}

func NewAssessor(cfg config.PipelineConfig) *Assessor {
	return &Assessor{cfg: cfg}
}

// Assess 从 1.0 起扣分；issues 按扣分顺序累积，decision != process 时必非空。
func (a *Assessor) Assess(doc *models.Document, det *models.TypeDetectionResult) *models.QualityAssessment {
	score := 1.0
	var issues []string
	var metrics *models.QualityMetrics

	if doc.Size > a.cfg.MaxFileBytes {
		score -= penaltyOversize
		issues = append(issues, "file too large")
	}

	if det.Category.IsRaster() {
		img := a.rasterSample(doc, det)
		if img == nil {
			if det.Category == models.CategoryImage {
				// 声称是图片却解不开
				score -= penaltyUnreadableRast
				issues = append(issues, "unreadable image data")
			}
			// PDF 内嵌图像无法解码时光栅指标不适用
		} else {
			metrics = &models.QualityMetrics{}
			bounds := img.Bounds()
			metrics.Width = bounds.Dx()
			metrics.Height = bounds.Dy()

			minDim := metrics.Width
			if metrics.Height < minDim {
				minDim = metrics.Height
			}
			if minDim < a.cfg.MinResolution {
				score -= penaltyLowResolution
				issues = append(issues, "resolution below minimum")
			}

			metrics.Contrast = rmsContrast(img)
			if metrics.Contrast < a.cfg.MinContrast {
				score -= penaltyLowContrast
				issues = append(issues, "low contrast")
			}

			metrics.LaplacianVariance = laplacianVariance(img)
			switch {
			case metrics.LaplacianVariance < a.cfg.LaplacianPoor:
				score -= penaltyBlurPoor
				issues = append(issues, "image too blurry")
			case metrics.LaplacianVariance < a.cfg.LaplacianAcceptable:
				score -= penaltyBlurEnhance
				issues = append(issues, "image blur in enhanceable range")
			}
		}
	}

	if det.Category.IsTextBearing() {
		if sample, ok := densitySample(doc, det); ok {
			if metrics == nil {
				metrics = &models.QualityMetrics{}
			}
			metrics.TextDensity = textDensity(sample)
			if metrics.TextDensity < a.cfg.MinTextDensity {
				score -= penaltyLowDensity
				issues = append(issues, "low text density")
			}
		}
	}

	if score < 0 {
		score = 0
	}

	decision := models.DecisionReject
	switch {
	case score >= a.cfg.ProcessThreshold:
		decision = models.DecisionProcess
	case score >= a.cfg.RejectThreshold:
		decision = models.DecisionEnhance
	}

	return &models.QualityAssessment{
		Score:    score,
		Decision: decision,
		Issues:   issues,
		Metrics:  metrics,
	}
}

// rasterSample 取用于指标计算的光栅样本：image 类直接解码，
// PDF 类解码第一个内嵌 JPEG。
func (a *Assessor) rasterSample(doc *models.Document, det *models.TypeDetectionResult) image.Image {
	var data []byte
	switch det.Category {
	case models.CategoryImage:
		data = doc.Content
	case models.CategoryPDFImage, models.CategoryPDFMixed:
		embedded := pdfscan.EmbeddedJPEGs(doc.Content, 1)
		if len(embedded) == 0 {
			return nil
		}
		data = embedded[0]
	default:
		return nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	return img
}

// densitySample 取文本密度样本。office 是二进制容器，密度指标不适用。
func densitySample(doc *models.Document, det *models.TypeDetectionResult) ([]byte, bool) {
	switch det.Category {
	case models.CategoryText:
		return doc.Content, true
	case models.CategoryPDFText, models.CategoryPDFMixed:
		if det.Signals.SampleText != "" {
			return []byte(det.Signals.SampleText), true
		}
	}
	return nil, false
}
