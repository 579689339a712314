package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/feichai0017/ingest-triage/pkg/logger"
)

// DocumentValidator 接入层验证器。这里只做硬性筛查：空文件、超过
// 硬上限的文件、无文件名的提交。类型识别和质量评估是管道的职责，
// 未知扩展名在这里放行，由分诊决定去向。
type DocumentValidator struct {
	logger logger.Logger
	config *ValidatorConfig
}

// ValidatorConfig 验证器配置
type ValidatorConfig struct {
	// MaxFileSize 接入硬上限。质量门的大小惩罚阈值独立于此，
	// 超过质量阈值但低于硬上限的文件仍然入队。
	MaxFileSize int64
	// BlockedExtensions 直接拒收的扩展名（可执行文件等）
	BlockedExtensions map[string]bool
}

// ValidationResult 验证结果
type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	FileInfo FileInfo          `json:"fileInfo"`
}

// ValidationError 验证错误
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// FileInfo 文件信息
type FileInfo struct {
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mimeType"`
	Extension string `json:"extension"`
	Hash      string `json:"hash"`
}

func NewDocumentValidator(log logger.Logger, config *ValidatorConfig) *DocumentValidator {
	if config == nil {
		config = &ValidatorConfig{
			MaxFileSize: 200 * 1024 * 1024,
			BlockedExtensions: map[string]bool{
				".exe": true,
				".dll": true,
				".bat": true,
				".sh":  true,
				".js":  true,
			},
		}
	}

	return &DocumentValidator{
		logger: log,
		config: config,
	}
}

// ValidateFile 验证单个上传文件
func (v *DocumentValidator) ValidateFile(file *multipart.FileHeader) (*ValidationResult, error) {
	result := &ValidationResult{
		IsValid: true,
		Errors:  make([]ValidationError, 0),
		FileInfo: FileInfo{
			Filename:  file.Filename,
			Size:      file.Size,
			Extension: strings.ToLower(filepath.Ext(file.Filename)),
		},
	}

	if file.Filename == "" {
		result.IsValid = false
		result.Errors = append(result.Errors, ValidationError{
			Code:    "MISSING_FILENAME",
			Message: "Uploaded file has no filename",
			Field:   "filename",
		})
	}

	if file.Size == 0 {
		result.IsValid = false
		result.Errors = append(result.Errors, ValidationError{
			Code:    "EMPTY_FILE",
			Message: "Uploaded file is empty",
			Field:   "size",
		})
	}

	if file.Size > v.config.MaxFileSize {
		result.IsValid = false
		result.Errors = append(result.Errors, ValidationError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds hard limit of %d bytes", v.config.MaxFileSize),
			Field:   "size",
		})
	}

	if v.config.BlockedExtensions[result.FileInfo.Extension] {
		result.IsValid = false
		result.Errors = append(result.Errors, ValidationError{
			Code:    "BLOCKED_FILE_TYPE",
			Message: fmt.Sprintf("File type %s is not accepted", result.FileInfo.Extension),
			Field:   "extension",
		})
	}

	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	hash, err := v.calculateHash(f)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}
	result.FileInfo.Hash = hash

	if _, err := f.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("failed to reset file pointer: %w", err)
	}

	mimeType, err := v.detectMimeType(f)
	if err != nil {
		return nil, fmt.Errorf("failed to detect mime type: %w", err)
	}
	result.FileInfo.MimeType = mimeType

	return result, nil
}

// detectMimeType 从文件头嗅探 MIME 类型，仅作记录，不用于拦截：
// 声明类型与实际字节不符的文件正是分诊要处理的对象
func (v *DocumentValidator) detectMimeType(file multipart.File) (string, error) {
	buffer := make([]byte, 512)
	_, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", err
	}

	if _, err := file.Seek(0, 0); err != nil {
		return "", err
	}

	return http.DetectContentType(buffer), nil
}

func (v *DocumentValidator) calculateHash(file multipart.File) (string, error) {
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
