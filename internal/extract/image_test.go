package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/ingest-triage/config"
	"github.com/feichai0017/ingest-triage/internal/models"
	"github.com/feichai0017/ingest-triage/pkg/logger"
)

func imageRequest(content []byte, decision models.Decision) *Request {
	return &Request{
		Document:  &models.Document{ID: "doc-1", Filename: "scan.jpg", Content: content},
		Detection: &models.TypeDetectionResult{Category: models.CategoryImage},
		Quality:   &models.QualityAssessment{Decision: decision},
	}
}

func TestImageExtractSuccess(t *testing.T) {
	engine := &stubEngine{text: "Delivery accepted by warehouse operator on site.", conf: 0.88}
	e := NewImageExtractor(engine, config.Defaults().OCR, logger.NewTestLogger())

	res, err := e.Extract(context.Background(), imageRequest(encodeJPEG(t, 80, 60), models.DecisionProcess))

	require.NoError(t, err)
	assert.False(t, res.Failed)
	assert.Equal(t, "Delivery accepted by warehouse operator on site.", res.Text)
	assert.Equal(t, models.MethodOCR, res.Method)
	assert.Equal(t, models.LanguageEnglish, res.Language)
	assert.Equal(t, 0.88, res.Metadata["ocrConfidence"])
}

func TestImageExtractEnhancedMethod(t *testing.T) {
	engine := &stubEngine{text: "Readable after contrast normalization and sharpening.", conf: 0.7}
	e := NewImageExtractor(engine, config.Defaults().OCR, logger.NewTestLogger())

	res, err := e.Extract(context.Background(), imageRequest(encodeJPEG(t, 80, 60), models.DecisionEnhance))

	require.NoError(t, err)
	assert.Equal(t, models.MethodOCREnhanced, res.Method)
}

func TestImageExtractTooLittleText(t *testing.T) {
	engine := &stubEngine{text: "ok", conf: 0.9}
	e := NewImageExtractor(engine, config.Defaults().OCR, logger.NewTestLogger())

	res, err := e.Extract(context.Background(), imageRequest(encodeJPEG(t, 80, 60), models.DecisionProcess))

	require.NoError(t, err)
	assert.True(t, res.Failed)
	assert.Equal(t, "ocr produced too little text", res.FailureReason)
}

func TestImageExtractEngineErrorIsTransient(t *testing.T) {
	engine := &stubEngine{err: errors.New("tesseract pool exhausted")}
	e := NewImageExtractor(engine, config.Defaults().OCR, logger.NewTestLogger())

	_, err := e.Extract(context.Background(), imageRequest(encodeJPEG(t, 80, 60), models.DecisionProcess))

	assert.ErrorIs(t, err, ErrTransient)
}

func TestImageExtractUndecodableNotTransient(t *testing.T) {
	engine := &stubEngine{text: "unused"}
	e := NewImageExtractor(engine, config.Defaults().OCR, logger.NewTestLogger())

	_, err := e.Extract(context.Background(), imageRequest([]byte("not an image at all"), models.DecisionProcess))

	// 解码失败重试无意义，不能标记为瞬时故障
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTransient)
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want models.Language
	}{
		{"english", "Monthly maintenance report for pump station three.", models.LanguageEnglish},
		{"mongolian", "Засвар үйлчилгээний гэрээний нөхцөл.", models.LanguageMongolian},
		{"mixed", "Гэрээ attachment: contract terms Монгол хэл дээр.", models.LanguageMixed},
		{"no letters", "2024-03-12 11:45 ---", models.LanguageUnspecified},
		{"empty", "", models.LanguageUnspecified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectLanguage(tt.text))
		})
	}
}

func TestCyrillicRatio(t *testing.T) {
	assert.Zero(t, cyrillicRatio("latin only"))
	assert.InDelta(t, 1.0, cyrillicRatio("кириллица"), 1e-9)
	assert.Zero(t, cyrillicRatio("1234"))
}
