package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/ingest-triage/internal/models"
)

const (
	resultKeyPrefix = "triage:result:"
	reviewKeyPrefix = "triage:review:"
	rejectKeyPrefix = "triage:reject:"
)

// RedisSink 把终态记录写入 Redis，下游的索引方、审查方和通知方
// 各自消费对应的键空间。
type RedisSink struct {
	client *redis.Client
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client}
}

func (s *RedisSink) Commit(ctx context.Context, result *models.CommittedResult) error {
	return s.set(ctx, resultKeyPrefix+result.DocumentID, result)
}

func (s *RedisSink) FlagForReview(ctx context.Context, task *models.ReviewTask) error {
	return s.set(ctx, reviewKeyPrefix+task.DocumentID, task)
}

func (s *RedisSink) Reject(ctx context.Context, record *models.RejectionRecord) error {
	return s.set(ctx, rejectKeyPrefix+record.DocumentID, record)
}

// Existing 幂等检查：至少一次投递不能产生重复的审查任务或覆盖已提交结果
func (s *RedisSink) Existing(ctx context.Context, documentID string) (models.TerminalState, bool, error) {
	keys := []struct {
		key   string
		state models.TerminalState
	}{
		{resultKeyPrefix + documentID, models.StateCommitted},
		{reviewKeyPrefix + documentID, models.StateNeedsReview},
		{rejectKeyPrefix + documentID, models.StateRejected},
	}
	for _, k := range keys {
		n, err := s.client.Exists(ctx, k.key).Result()
		if err != nil {
			return "", false, fmt.Errorf("check existing record: %w", err)
		}
		if n > 0 {
			return k.state, true, nil
		}
	}
	return "", false, nil
}

// GetResult 读取已提交结果，供状态查询接口使用
func (s *RedisSink) GetResult(ctx context.Context, documentID string) (*models.CommittedResult, error) {
	var result models.CommittedResult
	if err := s.get(ctx, resultKeyPrefix+documentID, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetReviewTask 读取审查任务
func (s *RedisSink) GetReviewTask(ctx context.Context, documentID string) (*models.ReviewTask, error) {
	var task models.ReviewTask
	if err := s.get(ctx, reviewKeyPrefix+documentID, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetRejection 读取拒绝记录
func (s *RedisSink) GetRejection(ctx context.Context, documentID string) (*models.RejectionRecord, error) {
	var record models.RejectionRecord
	if err := s.get(ctx, rejectKeyPrefix+documentID, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Clear 删除文档的全部终态记录，重处理时调用
func (s *RedisSink) Clear(ctx context.Context, documentID string) error {
	return s.client.Del(ctx,
		resultKeyPrefix+documentID,
		reviewKeyPrefix+documentID,
		rejectKeyPrefix+documentID,
	).Err()
}

func (s *RedisSink) set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("persist record: %w", err)
	}
	return nil
}

func (s *RedisSink) get(ctx context.Context, key string, dst interface{}) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return fmt.Errorf("load record: %w", err)
	}
	return json.Unmarshal(data, dst)
}
