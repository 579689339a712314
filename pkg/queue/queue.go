package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/ingest-triage/config"
)

// TaskTypeDocumentTriage 文档分诊任务类型
const TaskTypeDocumentTriage = "document:triage"

// TriageJob 队列消息：文档标识 + 字节内容的可取回引用 + 声明的元信息。
// 管道从不直接接收原始表单数据。
type TriageJob struct {
	DocumentID  string    `json:"documentId"`
	ObjectKey   string    `json:"objectKey"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Source      string    `json:"source,omitempty"`
	Department  string    `json:"department,omitempty"`
	Priority    int       `json:"priority"`
	Reprocess   bool      `json:"reprocess,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TaskStatus 任务执行状态
type TaskStatus struct {
	TaskID     string    `json:"taskId"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// Queue 接口定义
type Queue interface {
	Enqueue(ctx context.Context, job *TriageJob) error
	GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error)
	SaveStatus(ctx context.Context, status *TaskStatus) error
	// SaveJob / GetJob 保存提交记录，重处理时按文档 ID 取回原始任务
	SaveJob(ctx context.Context, job *TriageJob) error
	GetJob(ctx context.Context, documentID string) (*TriageJob, error)
}

// AsynqQueue 基于 asynq + Redis 的实现
type AsynqQueue struct {
	client     *asynq.Client
	inspector  *asynq.Inspector
	redis      *redis.Client
	maxRetries int
	jobTimeout time.Duration
}

func NewAsynqQueue(cfg *config.Config) (*AsynqQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	}

	return &AsynqQueue{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		redis: redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		}),
		maxRetries: cfg.Pipeline.MaxRetries,
		// 任务超时要覆盖五个阶段的总预算，留出落地余量
		jobTimeout: cfg.Pipeline.JobTimeout + time.Minute,
	}, nil
}

// Enqueue 将分诊任务加入队列。任务 ID 取文档 ID，同一文档的重复
// 投递在队列层面就会被合并；重处理用独立 ID 绕开合并。
func (q *AsynqQueue) Enqueue(ctx context.Context, job *TriageJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	taskID := job.DocumentID
	if job.Reprocess {
		taskID = fmt.Sprintf("%s:reprocess:%d", job.DocumentID, time.Now().UnixNano())
	}

	opts := []asynq.Option{
		asynq.TaskID(taskID),
		asynq.MaxRetry(q.maxRetries),
		asynq.Timeout(q.jobTimeout),
	}

	switch job.Priority {
	case 1:
		opts = append(opts, asynq.Queue("critical"))
	case 2:
		opts = append(opts, asynq.Queue("default"))
	default:
		opts = append(opts, asynq.Queue("low"))
	}

	t := asynq.NewTask(TaskTypeDocumentTriage, payload, opts...)
	if _, err := q.client.EnqueueContext(ctx, t); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// GetTaskStatus 获取任务状态，优先读已保存的最终状态
func (q *AsynqQueue) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	key := statusKey(taskID)
	data, err := q.redis.Get(ctx, key).Bytes()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to get status from redis: %w", err)
	}
	if err == nil {
		var status TaskStatus
		if err := json.Unmarshal(data, &status); err != nil {
			return nil, fmt.Errorf("failed to unmarshal status: %w", err)
		}
		return &status, nil
	}

	// Redis 里没有，去各队列查在途任务
	queues := []string{"critical", "default", "low"}
	var info *asynq.TaskInfo
	var lastErr error
	for _, queueName := range queues {
		info, err = q.inspector.GetTaskInfo(queueName, taskID)
		if err == nil {
			break
		}
		lastErr = err
	}
	if info == nil {
		return nil, fmt.Errorf("task not found in any queue: %w", lastErr)
	}

	return convertAsynqStatus(info), nil
}

// SaveStatus 保存最终任务状态，保留 24 小时
func (q *AsynqQueue) SaveStatus(ctx context.Context, status *TaskStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	if err := q.redis.Set(ctx, statusKey(status.TaskID), data, 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}
	return nil
}

// SaveJob 保存提交记录。对象在存储里保留多久，记录就保留多久，
// 这里与存储清理周期对齐取 7 天。
func (q *AsynqQueue) SaveJob(ctx context.Context, job *TriageJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job record: %w", err)
	}
	if err := q.redis.Set(ctx, jobKey(job.DocumentID), data, 7*24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to save job record: %w", err)
	}
	return nil
}

// GetJob 取回提交记录
func (q *AsynqQueue) GetJob(ctx context.Context, documentID string) (*TriageJob, error) {
	data, err := q.redis.Get(ctx, jobKey(documentID)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("no submission record for document %s", documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job record: %w", err)
	}
	var job TriageJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job record: %w", err)
	}
	return &job, nil
}

// Close 释放队列连接
func (q *AsynqQueue) Close() error {
	if err := q.client.Close(); err != nil {
		return err
	}
	return q.redis.Close()
}

func statusKey(taskID string) string {
	return fmt.Sprintf("triage:task:%s", taskID)
}

func jobKey(documentID string) string {
	return fmt.Sprintf("triage:job:%s", documentID)
}

func convertAsynqStatus(info *asynq.TaskInfo) *TaskStatus {
	status := &TaskStatus{
		TaskID:    info.ID,
		StartedAt: info.NextProcessAt,
	}

	switch info.State {
	case asynq.TaskStatePending:
		status.Status = "pending"
	case asynq.TaskStateActive:
		status.Status = "running"
	case asynq.TaskStateCompleted:
		status.Status = "completed"
		status.FinishedAt = info.CompletedAt
	case asynq.TaskStateRetry:
		status.Status = "retrying"
		status.Error = info.LastErr
	case asynq.TaskStateArchived:
		status.Status = "failed"
		status.Error = info.LastErr
	default:
		status.Status = "unknown"
	}
	return status
}
