package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/feichai0017/ingest-triage/internal/models"
	"github.com/feichai0017/ingest-triage/pkg/logger"
)

// buildZip 构造测试用的 Office ZIP 容器
func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func officeRequest(filename string, content []byte) *Request {
	return &Request{
		Document:  &models.Document{ID: "doc-1", Filename: filename, Content: content},
		Detection: &models.TypeDetectionResult{Category: models.CategoryOffice},
		Quality:   &models.QualityAssessment{Decision: models.DecisionProcess},
	}
}

func TestTextExtractPlainText(t *testing.T) {
	e := NewTextExtractor(logger.NewTestLogger())

	body := "  Shipping manifest for container MSKU-3301, forty pallets of machine parts.  \n"
	res, err := e.Extract(context.Background(), textRequest(body))

	require.NoError(t, err)
	assert.False(t, res.Failed)
	assert.Equal(t, strings.TrimSpace(body), res.Text)
	assert.Equal(t, models.MethodTextParse, res.Method)
	assert.Equal(t, models.LanguageEnglish, res.Language)
}

func TestTextExtractSanitizesInvalidUTF8(t *testing.T) {
	e := NewTextExtractor(logger.NewTestLogger())

	res, err := e.Extract(context.Background(), textRequest("caf\xff\xfee latte"))

	require.NoError(t, err)
	assert.Equal(t, "cafe latte", res.Text)
}

func TestTextExtractDocx(t *testing.T) {
	e := NewTextExtractor(logger.NewTestLogger())

	docXML := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph of the agreement.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second paragraph with terms.</w:t></w:r></w:p>
  </w:body>
</w:document>`
	content := buildZip(t, map[string]string{"word/document.xml": docXML})

	res, err := e.Extract(context.Background(), officeRequest("agreement.docx", content))

	require.NoError(t, err)
	assert.False(t, res.Failed)
	assert.Contains(t, res.Text, "First paragraph of the agreement.")
	assert.Contains(t, res.Text, "Second paragraph with terms.")
}

func TestTextExtractODT(t *testing.T) {
	e := NewTextExtractor(logger.NewTestLogger())

	contentXML := `<?xml version="1.0"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0">
<office:body><office:text><text:p>Opening clause.</text:p><text:p>Closing clause.</text:p></office:text></office:body>
</office:document-content>`
	content := buildZip(t, map[string]string{"content.xml": contentXML})

	res, err := e.Extract(context.Background(), officeRequest("contract.odt", content))

	require.NoError(t, err)
	assert.Contains(t, res.Text, "Opening clause.")
	assert.Contains(t, res.Text, "Closing clause.")
}

func TestTextExtractXLSX(t *testing.T) {
	e := NewTextExtractor(logger.NewTestLogger())

	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Item"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Qty"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Bolts"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 42))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	res, err := e.Extract(context.Background(), officeRequest("inventory.xlsx", buf.Bytes()))

	require.NoError(t, err)
	assert.Contains(t, res.Text, "Sheet1")
	assert.Contains(t, res.Text, "Item\tQty")
	assert.Contains(t, res.Text, "Bolts\t42")
}

func TestTextExtractHTML(t *testing.T) {
	e := NewTextExtractor(logger.NewTestLogger())

	html := `<html><body><h1>Safety Bulletin</h1><p>Wear protective equipment at all times.</p></body></html>`

	res, err := e.Extract(context.Background(), officeRequest("bulletin.html", []byte(html)))

	require.NoError(t, err)
	assert.Contains(t, res.Text, "Safety Bulletin")
	assert.Contains(t, res.Text, "Wear protective equipment at all times.")
}

func TestTextExtractLegacyFormatFails(t *testing.T) {
	e := NewTextExtractor(logger.NewTestLogger())

	content := append([]byte("\xd0\xcf\x11\xe0\xa1\xb1\x1a\xe1"), make([]byte, 64)...)
	res, err := e.Extract(context.Background(), officeRequest("old-report.doc", content))

	// 转换失败是失败结果，不是错误：路由端转人工审查
	require.NoError(t, err)
	assert.True(t, res.Failed)
	assert.Contains(t, res.FailureReason, "legacy OLE format not supported")
}

func TestTextExtractCorruptContainerFails(t *testing.T) {
	e := NewTextExtractor(logger.NewTestLogger())

	res, err := e.Extract(context.Background(), officeRequest("broken.docx", []byte("PK\x03\x04 not a real zip")))

	require.NoError(t, err)
	assert.True(t, res.Failed)
	assert.Contains(t, res.FailureReason, "conversion failed")
}
