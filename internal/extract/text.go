package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/feichai0017/ingest-triage/internal/models"
	"github.com/feichai0017/ingest-triage/internal/pdfscan"
	"github.com/feichai0017/ingest-triage/pkg/logger"
)

// TextExtractor 文本/办公文档提取器。转换产出接近空时判失败
// 触发人工审查，而不是静默接受。
type TextExtractor struct {
	logger logger.Logger
}

func NewTextExtractor(log logger.Logger) *TextExtractor {
	return &TextExtractor{logger: log}
}

func (e *TextExtractor) Available() bool { return true }

func (e *TextExtractor) Extract(ctx context.Context, req *Request) (*models.ExtractionResult, error) {
	doc := req.Document

	var text string
	var err error
	switch req.Detection.Category {
	case models.CategoryPDFText:
		text, err = pdfscan.ExtractText(doc.Content)
	case models.CategoryOffice:
		text, err = e.convertOffice(doc)
	default:
		// text 和 unknown 兜底：按纯文本读取
		text = sanitizeText(doc.Content)
	}
	if err != nil {
		e.logger.Warn("Document conversion failed",
			logger.String("documentId", doc.ID),
			logger.Error(err),
		)
		return &models.ExtractionResult{
			Language:      models.LanguageUnspecified,
			Method:        models.MethodTextParse,
			Failed:        true,
			FailureReason: fmt.Sprintf("conversion failed: %v", err),
		}, nil
	}

	return &models.ExtractionResult{
		Text:     strings.TrimSpace(text),
		Language: detectLanguage(text),
		Method:   models.MethodTextParse,
	}, nil
}

// convertOffice 按扩展名分发到对应的容器解析
func (e *TextExtractor) convertOffice(doc *models.Document) (string, error) {
	switch strings.ToLower(filepath.Ext(doc.Filename)) {
	case ".docx":
		return extractDocx(doc.Content)
	case ".odt":
		return extractODT(doc.Content)
	case ".xlsx":
		return extractXLSX(doc.Content)
	case ".html", ".htm":
		return extractHTML(doc.Content)
	case ".doc", ".xls":
		return "", fmt.Errorf("legacy OLE format not supported: %s", filepath.Ext(doc.Filename))
	default:
		// 扩展名和容器签名不一致时按签名试探
		if strings.HasPrefix(string(doc.Content), "PK") {
			return extractDocx(doc.Content)
		}
		return sanitizeText(doc.Content), nil
	}
}

// sanitizeText 剔除非法 UTF-8 字节，保留其余原文
func sanitizeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "")
}
