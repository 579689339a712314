package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/feichai0017/ingest-triage/config"
	"github.com/feichai0017/ingest-triage/pkg/logger"
	"github.com/feichai0017/ingest-triage/pkg/storage/minio"
	"github.com/feichai0017/ingest-triage/pkg/storage/s3"
)

// Storage 入库存储接口
type Storage interface {
	// Store 存储文件，返回对象键
	Store(ctx context.Context, reader io.Reader, key string) (string, error)
	// Get 获取文件
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete 删除文件
	Delete(ctx context.Context, key string) error
	// CleanupBefore 清理过期文件
	CleanupBefore(ctx context.Context, threshold time.Time) error
}

// New 创建存储实例的工厂方法
func New(cfg *config.StorageConfig, log logger.Logger) (Storage, error) {
	switch cfg.Type {
	case "minio":
		return minio.NewClient(cfg, log)
	case "s3":
		return s3.NewClient(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// RunRetention 周期清理超过保留期的入库对象，ctx 取消时退出。
// 保留期与提交记录的有效期对齐，过期对象不再支持重处理。
func RunRetention(ctx context.Context, s Storage, interval, maxAge time.Duration, log logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			threshold := time.Now().Add(-maxAge)
			if err := s.CleanupBefore(ctx, threshold); err != nil {
				log.Error("Storage retention sweep failed", logger.Error(err))
				continue
			}
			log.Info("Storage retention sweep finished",
				logger.Duration("maxAge", maxAge),
			)
		}
	}
}
