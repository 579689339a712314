package classify

import (
	"bytes"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/feichai0017/ingest-triage/internal/models"
	"github.com/feichai0017/ingest-triage/internal/pdfscan"
	"github.com/feichai0017/ingest-triage/pkg/logger"
)

// 信号投票权重。字节签名比客户端声明的扩展名更可信，
// PDF 页面扫描只在 PDF 族内起裁决作用。
const (
	weightExtension = 0.35
	weightSignature = 0.40
	weightContent   = 0.25
)

// maxScanPages PDF 浅层扫描的页数上限
const maxScanPages = 5

// categoryPDF PDF 族的内部标记，子类别由页面扫描裁决
const categoryPDF models.Category = "pdf"

var extToCategory = map[string]models.Category{
	".txt":  models.CategoryText,
	".md":   models.CategoryText,
	".csv":  models.CategoryText,
	".log":  models.CategoryText,
	".doc":  models.CategoryOffice,
	".docx": models.CategoryOffice,
	".odt":  models.CategoryOffice,
	".xls":  models.CategoryOffice,
	".xlsx": models.CategoryOffice,
	".html": models.CategoryOffice,
	".htm":  models.CategoryOffice,
	".pdf":  categoryPDF,
	".jpg":  models.CategoryImage,
	".jpeg": models.CategoryImage,
	".png":  models.CategoryImage,
	".tif":  models.CategoryImage,
	".tiff": models.CategoryImage,
	".bmp":  models.CategoryImage,
	".dwg":  models.CategoryCAD,
	".dxf":  models.CategoryCAD,
}

// Classifier 多信号文件类型分类器。失败从不上抛，最差返回 unknown。
type Classifier struct {
	logger logger.Logger
}

func NewClassifier(log logger.Logger) *Classifier {
	return &Classifier{logger: log}
}

// Classify 由扩展名、字节签名和（PDF 的）页面扫描三路信号加权投票得出类别。
// 置信度为胜出权重除以可用总权重。
func (c *Classifier) Classify(doc *models.Document) *models.TypeDetectionResult {
	if len(doc.Content) == 0 {
		return &models.TypeDetectionResult{
			Category:   models.CategoryUnknown,
			Confidence: 0,
		}
	}

	extCat := categoryForExtension(doc.Filename)
	sigCat := categoryForSignature(doc.Content)

	// 族级 "pdf" 信号原样记录，子类别由内容扫描裁决
	signals := models.DetectionSignals{
		ExtensionCategory: extCat,
		SignatureCategory: sigCat,
	}

	votes := make(map[models.Category]float64)
	available := weightExtension + weightSignature

	pdfFamily := extCat == categoryPDF || sigCat == categoryPDF
	if pdfFamily {
		available += weightContent
		sub := c.scanPDF(doc, &signals)
		votes[sub] += weightContent
		// 族内信号同意该子类别
		if extCat == categoryPDF {
			votes[sub] += weightExtension
		}
		if sigCat == categoryPDF {
			votes[sub] += weightSignature
		}
	}
	if extCat != models.CategoryUnknown && extCat != categoryPDF {
		votes[extCat] += weightExtension
	}
	if sigCat != models.CategoryUnknown && sigCat != categoryPDF {
		votes[sigCat] += weightSignature
	}

	winner := models.CategoryUnknown
	var best float64
	for cat, w := range votes {
		if w > best {
			winner, best = cat, w
		}
	}

	confidence := 0.0
	if available > 0 {
		confidence = best / available
	}

	c.logger.Debug("Classified document",
		logger.String("documentId", doc.ID),
		logger.String("category", string(winner)),
		logger.Float64("confidence", confidence),
	)

	return &models.TypeDetectionResult{
		Category:   winner,
		Confidence: confidence,
		Signals:    signals,
	}
}

// scanPDF 浅层扫描决定 PDF 子类别：有文本有图 -> pdf_mixed，
// 只有文本 -> pdf_text，只有图或扫描失败 -> pdf_image。
func (c *Classifier) scanPDF(doc *models.Document, signals *models.DetectionSignals) models.Category {
	scan, err := pdfscan.Scan(doc.Content, maxScanPages)
	if err != nil {
		c.logger.Warn("PDF scan failed, assuming rasterized content",
			logger.String("documentId", doc.ID),
			logger.Error(err),
		)
		return models.CategoryPDFImage
	}

	signals.PDFPagesScanned = scan.PagesScanned
	signals.PDFTextPages = scan.TextPages
	signals.PDFImageObjects = scan.ImageObjects
	signals.SampleText = scan.SampleText

	switch {
	case scan.TextPages > 0 && scan.ImageObjects > 0:
		return models.CategoryPDFMixed
	case scan.TextPages > 0:
		return models.CategoryPDFText
	default:
		return models.CategoryPDFImage
	}
}

func categoryForExtension(filename string) models.Category {
	ext := strings.ToLower(filepath.Ext(filename))
	if cat, ok := extToCategory[ext]; ok {
		return cat
	}
	return models.CategoryUnknown
}

func categoryForSignature(content []byte) models.Category {
	head := content
	if len(head) > 512 {
		head = head[:512]
	}

	switch {
	case bytes.HasPrefix(head, []byte("%PDF")):
		return categoryPDF
	case bytes.HasPrefix(head, []byte("\x89PNG\r\n\x1a\n")):
		return models.CategoryImage
	case bytes.HasPrefix(head, []byte("\xff\xd8\xff")):
		return models.CategoryImage
	case bytes.HasPrefix(head, []byte("II*\x00")), bytes.HasPrefix(head, []byte("MM\x00*")):
		return models.CategoryImage
	case bytes.HasPrefix(head, []byte("BM")) && len(content) > 14:
		return models.CategoryImage
	case bytes.HasPrefix(head, []byte("AC1")):
		// DWG 版本签名（AC1015 .. AC1032）
		return models.CategoryCAD
	case looksLikeDXF(head):
		return models.CategoryCAD
	case bytes.HasPrefix(head, []byte("PK\x03\x04")):
		// docx/xlsx/odt 容器
		return models.CategoryOffice
	case bytes.HasPrefix(head, []byte("\xd0\xcf\x11\xe0\xa1\xb1\x1a\xe1")):
		// 旧版 OLE 复合文档 (doc/xls)
		return models.CategoryOffice
	}

	mime := http.DetectContentType(head)
	switch {
	case strings.HasPrefix(mime, "text/html"):
		return models.CategoryOffice
	case strings.HasPrefix(mime, "text/"):
		return models.CategoryText
	case strings.HasPrefix(mime, "image/"):
		return models.CategoryImage
	}
	return models.CategoryUnknown
}

// looksLikeDXF DXF 是文本格式，靠组码 0 + SECTION 识别
func looksLikeDXF(head []byte) bool {
	if !bytes.Contains(head, []byte("SECTION")) {
		return false
	}
	trimmed := bytes.TrimLeft(head, " \t\r\n")
	return bytes.HasPrefix(trimmed, []byte("0")) || bytes.HasPrefix(trimmed, []byte("999"))
}
