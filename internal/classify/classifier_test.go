package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/feichai0017/ingest-triage/internal/models"
	"github.com/feichai0017/ingest-triage/pkg/logger"
)

func newTestClassifier() *Classifier {
	return NewClassifier(logger.NewTestLogger())
}

func TestClassifyPlainTextAgreement(t *testing.T) {
	c := newTestClassifier()

	det := c.Classify(&models.Document{
		ID:       "doc-1",
		Filename: "meeting-notes.txt",
		Content:  []byte("Quarterly review notes. Attendees: operations, finance."),
	})

	// 扩展名和字节签名一致时置信度为满分
	assert.Equal(t, models.CategoryText, det.Category)
	assert.InDelta(t, 1.0, det.Confidence, 1e-9)
	assert.Equal(t, models.CategoryText, det.Signals.ExtensionCategory)
	assert.Equal(t, models.CategoryText, det.Signals.SignatureCategory)
}

func TestClassifyEmptyFile(t *testing.T) {
	c := newTestClassifier()

	det := c.Classify(&models.Document{
		ID:       "doc-2",
		Filename: "empty.pdf",
		Content:  nil,
	})

	assert.Equal(t, models.CategoryUnknown, det.Category)
	assert.Zero(t, det.Confidence)
}

func TestClassifySignalDisagreement(t *testing.T) {
	c := newTestClassifier()

	// PNG 字节配了个 .txt 扩展名：签名权重更高，图像胜出，
	// 但置信度因信号不一致被压低
	pngHeader := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	det := c.Classify(&models.Document{
		ID:       "doc-3",
		Filename: "scan.txt",
		Content:  pngHeader,
	})

	assert.Equal(t, models.CategoryImage, det.Category)
	assert.Less(t, det.Confidence, 0.6)
	assert.Greater(t, det.Confidence, 0.0)
}

func TestClassifyCAD(t *testing.T) {
	c := newTestClassifier()

	tests := []struct {
		name     string
		filename string
		content  []byte
	}{
		{"dwg signature", "site-plan.dwg", append([]byte("AC1027"), make([]byte, 32)...)},
		{"dxf text form", "bracket.dxf", []byte("0\nSECTION\n2\nHEADER\n9\n$ACADVER\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det := c.Classify(&models.Document{ID: "doc-4", Filename: tt.filename, Content: tt.content})
			assert.Equal(t, models.CategoryCAD, det.Category)
			assert.InDelta(t, 1.0, det.Confidence, 1e-9)
		})
	}
}

func TestClassifyOfficeContainer(t *testing.T) {
	c := newTestClassifier()

	det := c.Classify(&models.Document{
		ID:       "doc-5",
		Filename: "report.docx",
		Content:  append([]byte("PK\x03\x04"), make([]byte, 32)...),
	})

	assert.Equal(t, models.CategoryOffice, det.Category)
	assert.InDelta(t, 1.0, det.Confidence, 1e-9)
}

func TestClassifyMalformedPDFFallsBackToImage(t *testing.T) {
	c := newTestClassifier()

	// %PDF 签名但结构损坏：页面扫描失败按扫描件处理
	det := c.Classify(&models.Document{
		ID:       "doc-6",
		Filename: "scan.pdf",
		Content:  []byte("%PDF-1.7\ngarbage that is not a valid xref table"),
	})

	assert.Equal(t, models.CategoryPDFImage, det.Category)
	assert.InDelta(t, 1.0, det.Confidence, 1e-9)
}

func TestCategoryForSignatureUnknownBinary(t *testing.T) {
	content := []byte{0x00, 0x01, 0x02, 0x03, 0xfe, 0xff, 0x00, 0x10}
	assert.Equal(t, models.CategoryUnknown, categoryForSignature(content))
}
