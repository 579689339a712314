package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/ingest-triage/internal/service/ingest"
	"github.com/feichai0017/ingest-triage/pkg/logger"
)

type DocumentHandler struct {
	service ingest.IngestService
	logger  logger.Logger
}

// ErrorResponse 错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewDocumentHandler(service ingest.IngestService, log logger.Logger) *DocumentHandler {
	return &DocumentHandler{
		service: service,
		logger:  log,
	}
}

// SubmitDocument 提交单个文档分诊
func (h *DocumentHandler) SubmitDocument(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid file upload", err)
		return
	}
	defer file.Close()

	res, err := h.service.Submit(c.Request.Context(), file, header, submitOptions(c))
	if err != nil {
		h.handleError(c, http.StatusUnprocessableEntity, "Failed to accept document", err)
		return
	}

	c.JSON(http.StatusAccepted, res)
}

// SubmitBatch 批量提交
func (h *DocumentHandler) SubmitBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid form data", err)
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		h.handleError(c, http.StatusBadRequest, "No files provided", nil)
		return
	}

	results, err := h.service.SubmitBatch(c.Request.Context(), files, submitOptions(c))
	if err != nil {
		// 部分成功也返回已排队的部分
		c.JSON(http.StatusMultiStatus, gin.H{
			"error":   err.Error(),
			"results": results,
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Documents queued for triage",
		"results": results,
	})
}

// GetStatus 查询文档状态
func (h *DocumentHandler) GetStatus(c *gin.Context) {
	documentID := c.Param("documentId")
	if documentID == "" {
		h.handleError(c, http.StatusBadRequest, "Document ID is required", nil)
		return
	}

	status, err := h.service.Status(c.Request.Context(), documentID)
	if err != nil {
		h.handleError(c, http.StatusNotFound, "Failed to get status", err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// Reprocess 按提交记录重新分诊
func (h *DocumentHandler) Reprocess(c *gin.Context) {
	documentID := c.Param("documentId")
	if documentID == "" {
		h.handleError(c, http.StatusBadRequest, "Document ID is required", nil)
		return
	}

	if err := h.service.Reprocess(c.Request.Context(), documentID); err != nil {
		h.handleError(c, http.StatusNotFound, "Failed to reprocess document", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message":    "Document queued for reprocessing",
		"documentId": documentID,
	})
}

func submitOptions(c *gin.Context) ingest.SubmitOptions {
	priority, _ := strconv.Atoi(c.PostForm("priority"))
	return ingest.SubmitOptions{
		Source:     c.PostForm("source"),
		Department: c.PostForm("department"),
		Priority:   priority,
	}
}

// handleError 统一错误处理
func (h *DocumentHandler) handleError(c *gin.Context, status int, message string, err error) {
	h.logger.Error(message,
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)

	response := ErrorResponse{
		Message: message,
	}
	if err != nil {
		response.Error = err.Error()
	}

	c.JSON(status, response)
}
