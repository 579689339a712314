package models

import (
	"time"
)

// Category 文档类别，决定使用哪个提取器
type Category string

const (
	CategoryText     Category = "text"
	CategoryOffice   Category = "office"
	CategoryPDFText  Category = "pdf_text"
	CategoryPDFImage Category = "pdf_image"
	CategoryPDFMixed Category = "pdf_mixed"
	CategoryImage    Category = "image"
	CategoryCAD      Category = "cad"
	CategoryUnknown  Category = "unknown"
)

// IsRaster 判断类别是否包含需要图像质量指标的光栅内容
func (c Category) IsRaster() bool {
	switch c {
	case CategoryImage, CategoryPDFImage, CategoryPDFMixed:
		return true
	default:
		return false
	}
}

// IsTextBearing 判断类别是否应包含可提取的文本层
func (c Category) IsTextBearing() bool {
	switch c {
	case CategoryText, CategoryOffice, CategoryPDFText, CategoryPDFMixed:
		return true
	default:
		return false
	}
}

// Language 提取文本的检测语言
type Language string

const (
	LanguageEnglish     Language = "english"
	LanguageMongolian   Language = "mongolian"
	LanguageMixed       Language = "mixed"
	LanguageUnspecified Language = "unspecified"
)

// Document 处理单元。内容一旦进入管道即不可变。
type Document struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`    // 客户端声明，不可信
	ContentType string `json:"contentType"` // 客户端声明，不可信
	Size        int64  `json:"size"`
	Content     []byte `json:"-"`
	Source      string `json:"source,omitempty"`
	Department  string `json:"department,omitempty"`
}

// DetectionSignals 分类器的原始信号，保留用于审计
type DetectionSignals struct {
	ExtensionCategory Category `json:"extensionCategory"`
	SignatureCategory Category `json:"signatureCategory"`
	PDFPagesScanned   int      `json:"pdfPagesScanned,omitempty"`
	PDFTextPages      int      `json:"pdfTextPages,omitempty"`
	PDFImageObjects   int      `json:"pdfImageObjects,omitempty"`
	// SampleText PDF 扫描期间取到的文本样本，质量评估复用
	SampleText string `json:"-"`
}

// TypeDetectionResult 分类器输出。Category 永远有值；Confidence 可以很低但不为空。
type TypeDetectionResult struct {
	Category   Category         `json:"category"`
	Confidence float64          `json:"confidence"`
	Signals    DetectionSignals `json:"signals"`
}

// Decision 质量门的裁决
type Decision string

const (
	DecisionProcess Decision = "process"
	DecisionEnhance Decision = "enhance"
	DecisionReject  Decision = "reject"
)

// QualityMetrics 按类别适用的派生指标；不适用时为 nil
type QualityMetrics struct {
	Width             int     `json:"width,omitempty"`
	Height            int     `json:"height,omitempty"`
	LaplacianVariance float64 `json:"laplacianVariance,omitempty"`
	Contrast          float64 `json:"contrast,omitempty"`
	TextDensity       float64 `json:"textDensity,omitempty"`
}

// QualityAssessment 提取前质量评估
type QualityAssessment struct {
	Score    float64         `json:"score"`
	Decision Decision        `json:"decision"`
	Issues   []string        `json:"issues"`
	Metrics  *QualityMetrics `json:"metrics,omitempty"`
}

// ProcessingMethod 实际使用的提取方式
type ProcessingMethod string

const (
	MethodTextParse   ProcessingMethod = "text_parse"
	MethodOCR         ProcessingMethod = "ocr"
	MethodOCREnhanced ProcessingMethod = "ocr_enhanced"
	MethodCADMetadata ProcessingMethod = "cad_metadata"
	MethodMixed       ProcessingMethod = "mixed"
)

// ExtractionResult 提取器输出
type ExtractionResult struct {
	Text          string                 `json:"text"`
	Language      Language               `json:"language"`
	Method        ProcessingMethod       `json:"method"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Failed        bool                   `json:"failed"`
	FailureReason string                 `json:"failureReason,omitempty"`
}

// ConfidenceScore 提取后置信度，与提取前质量分独立
type ConfidenceScore struct {
	Value           float64 `json:"value"`
	IsolatedChars   int     `json:"isolatedChars"`
	RepeatedChars   int     `json:"repeatedChars"`
	CaseTransitions int     `json:"caseTransitions"`
}

// TerminalState 审查路由的终态
type TerminalState string

const (
	StatePending     TerminalState = "pending"
	StateCommitted   TerminalState = "committed"
	StateRejected    TerminalState = "rejected"
	StateNeedsReview TerminalState = "needs_review"
)

// ReviewStatus 审查任务状态
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewResolved ReviewStatus = "resolved"
)

// ReviewTask 需要人工判断时创建的任务
type ReviewTask struct {
	DocumentID      string       `json:"documentId"`
	Reason          string       `json:"reason"`
	QualityScore    float64      `json:"qualityScore"`
	ConfidenceScore float64      `json:"confidenceScore"`
	CreatedAt       time.Time    `json:"createdAt"`
	Status          ReviewStatus `json:"status"`
}

// CommittedResult 提交给下游索引方的最终记录
type CommittedResult struct {
	DocumentID  string                 `json:"documentId"`
	Text        string                 `json:"text"`
	Language    Language               `json:"language"`
	Method      ProcessingMethod       `json:"method"`
	Confidence  float64                `json:"confidence"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CommittedAt time.Time              `json:"committedAt"`
}

// RejectionRecord 拒绝记录，供通知方消费
type RejectionRecord struct {
	DocumentID string    `json:"documentId"`
	Reason     string    `json:"reason"`
	Issues     []string  `json:"issues,omitempty"`
	RejectedAt time.Time `json:"rejectedAt"`
}
