package ingest

import (
	"context"
	"mime/multipart"

	"github.com/feichai0017/ingest-triage/internal/models"
	"github.com/feichai0017/ingest-triage/internal/validator"
	"github.com/feichai0017/ingest-triage/pkg/queue"
)

// SubmitOptions 提交时的声明元信息
type SubmitOptions struct {
	Source     string
	Department string
	Priority   int
}

// SubmitResult 接收回执：文档已入库并排队，尚未分诊
type SubmitResult struct {
	DocumentID string             `json:"documentId"`
	ObjectKey  string             `json:"objectKey"`
	Status     string             `json:"status"`
	FileInfo   validator.FileInfo `json:"fileInfo"`
}

// DocumentStatus 文档当前状态：在途时只有任务状态，
// 到达终态后携带对应的终态记录
type DocumentStatus struct {
	DocumentID string                  `json:"documentId"`
	State      string                  `json:"state"`
	Result     *models.CommittedResult `json:"result,omitempty"`
	ReviewTask *models.ReviewTask      `json:"reviewTask,omitempty"`
	Rejection  *models.RejectionRecord `json:"rejection,omitempty"`
	Task       *queue.TaskStatus       `json:"task,omitempty"`
}

// IngestService 文档接入：验证、入库、排队，以及状态查询和重处理
type IngestService interface {
	Submit(ctx context.Context, file multipart.File, header *multipart.FileHeader, opts SubmitOptions) (*SubmitResult, error)
	SubmitBatch(ctx context.Context, files []*multipart.FileHeader, opts SubmitOptions) ([]*SubmitResult, error)
	Status(ctx context.Context, documentID string) (*DocumentStatus, error)
	Reprocess(ctx context.Context, documentID string) error
}
