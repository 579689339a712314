package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/ingest-triage/config"
	"github.com/feichai0017/ingest-triage/internal/classify"
	"github.com/feichai0017/ingest-triage/internal/confidence"
	"github.com/feichai0017/ingest-triage/internal/extract"
	"github.com/feichai0017/ingest-triage/internal/models"
	"github.com/feichai0017/ingest-triage/internal/pipeline"
	"github.com/feichai0017/ingest-triage/internal/quality"
	"github.com/feichai0017/ingest-triage/internal/review"
	"github.com/feichai0017/ingest-triage/pkg/logger"
	"github.com/feichai0017/ingest-triage/pkg/queue"
	"github.com/feichai0017/ingest-triage/pkg/sink"
)

// fakeStorage 内存对象存储
type fakeStorage struct {
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Store(_ context.Context, r io.Reader, key string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.objects[key] = data
	return key, nil
}

func (f *fakeStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, assert.AnError
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) CleanupBefore(_ context.Context, _ time.Time) error { return nil }

// fakeStatusWriter 记录回写的任务状态
type fakeStatusWriter struct {
	saved []*queue.TaskStatus
}

func (f *fakeStatusWriter) SaveStatus(_ context.Context, status *queue.TaskStatus) error {
	f.saved = append(f.saved, status)
	return nil
}

func newTestWorker(t *testing.T, stor *fakeStorage, store *sink.MemorySink) *TriageWorker {
	t.Helper()
	cfg := config.Defaults()
	log := logger.NewTestLogger()

	pipe := pipeline.New(
		classify.NewClassifier(log),
		quality.NewAssessor(cfg.Pipeline),
		extract.NewRegistry(cfg, nil, log),
		confidence.NewAssessor(),
		review.NewRouter(store, cfg.Pipeline.ReviewThreshold, log),
		log,
	)

	w, err := NewTriageWorker(
		&Config{RedisAddr: "localhost:6379", Concurrency: 1, Queues: map[string]int{"default": 1}},
		pipe, store, stor, nil, cfg.Pipeline.JobTimeout, log,
	)
	require.NoError(t, err)
	return w
}

func triageTask(t *testing.T, job *queue.TriageJob) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(job)
	require.NoError(t, err)
	return asynq.NewTask(queue.TaskTypeDocumentTriage, payload)
}

func TestHandleTriageCommitsDocument(t *testing.T) {
	stor := newFakeStorage()
	store := sink.NewMemorySink()
	w := newTestWorker(t, stor, store)

	body := []byte("Maintenance log for the filtration unit, including replaced seals and pressure readings.")
	stor.objects["ingest/doc-1.txt"] = body

	task := triageTask(t, &queue.TriageJob{
		DocumentID: "doc-1",
		ObjectKey:  "ingest/doc-1.txt",
		Filename:   "log.txt",
	})

	require.NoError(t, w.handleTriage(context.Background(), task))
	require.Contains(t, store.Results, "doc-1")
	assert.Equal(t, string(body), store.Results["doc-1"].Text)
}

func TestHandleTriageIsIdempotent(t *testing.T) {
	stor := newFakeStorage()
	store := sink.NewMemorySink()
	w := newTestWorker(t, stor, store)

	original := []byte("Original committed content, long enough to pass every length check in the pipeline.")
	stor.objects["ingest/doc-2.txt"] = original

	job := &queue.TriageJob{DocumentID: "doc-2", ObjectKey: "ingest/doc-2.txt", Filename: "doc.txt"}
	require.NoError(t, w.handleTriage(context.Background(), triageTask(t, job)))

	// 对象内容变了，但重复投递不应触发重新处理
	stor.objects["ingest/doc-2.txt"] = []byte("tampered")
	require.NoError(t, w.handleTriage(context.Background(), triageTask(t, job)))

	require.Len(t, store.Results, 1)
	assert.Equal(t, string(original), store.Results["doc-2"].Text)
}

func TestHandleTriageReprocessClearsOldOutcome(t *testing.T) {
	stor := newFakeStorage()
	store := sink.NewMemorySink()
	w := newTestWorker(t, stor, store)

	stor.objects["ingest/doc-3.txt"] = []byte("First version of the document body, sufficiently long for extraction to succeed.")
	job := &queue.TriageJob{DocumentID: "doc-3", ObjectKey: "ingest/doc-3.txt", Filename: "doc.txt"}
	require.NoError(t, w.handleTriage(context.Background(), triageTask(t, job)))

	updated := []byte("Second corrected version of the document body, also long enough to be committed.")
	stor.objects["ingest/doc-3.txt"] = updated
	job.Reprocess = true
	require.NoError(t, w.handleTriage(context.Background(), triageTask(t, job)))

	require.Len(t, store.Results, 1)
	assert.Equal(t, string(updated), store.Results["doc-3"].Text)
}

func TestHandleTriageCorruptPayloadSkipsRetry(t *testing.T) {
	w := newTestWorker(t, newFakeStorage(), sink.NewMemorySink())

	task := asynq.NewTask(queue.TaskTypeDocumentTriage, []byte("{not json"))
	err := w.handleTriage(context.Background(), task)

	assert.ErrorIs(t, err, asynq.SkipRetry)
}

// slowExtractor 阻塞到 ctx 结束
type slowExtractor struct{}

func (slowExtractor) Available() bool { return true }

func (slowExtractor) Extract(ctx context.Context, _ *extract.Request) (*models.ExtractionResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type slowSource struct{}

func (slowSource) ForCategory(_ models.Category) extract.Extractor { return slowExtractor{} }

func TestRetryDelayGrowsExponentially(t *testing.T) {
	assert.Equal(t, time.Second, retryDelay(0, nil, nil))
	for n := 0; n < 9; n++ {
		assert.Equal(t, 2*retryDelay(n, nil, nil), retryDelay(n+1, nil, nil), "attempt %d", n)
	}
	// 封顶之后不再增长
	assert.Equal(t, maxRetryDelay, retryDelay(12, nil, nil))
	assert.Equal(t, maxRetryDelay, retryDelay(64, nil, nil))
}

func TestHandleTriageSavesFinalStatus(t *testing.T) {
	stor := newFakeStorage()
	store := sink.NewMemorySink()
	w := newTestWorker(t, stor, store)
	statuses := &fakeStatusWriter{}
	w.statuses = statuses

	stor.objects["ingest/doc-5.txt"] = []byte("Inspection checklist for the loading dock, signed off by the shift supervisor.")
	task := triageTask(t, &queue.TriageJob{DocumentID: "doc-5", ObjectKey: "ingest/doc-5.txt", Filename: "checklist.txt"})

	require.NoError(t, w.handleTriage(context.Background(), task))

	require.Len(t, statuses.saved, 1)
	saved := statuses.saved[0]
	assert.Equal(t, "doc-5", saved.TaskID)
	assert.Equal(t, "completed", saved.Status)
	assert.False(t, saved.FinishedAt.Before(saved.StartedAt))
}

func TestHandleTriageJobDeadlineFlagsReview(t *testing.T) {
	stor := newFakeStorage()
	store := sink.NewMemorySink()
	cfg := config.Defaults()
	log := logger.NewTestLogger()

	pipe := pipeline.New(
		classify.NewClassifier(log),
		quality.NewAssessor(cfg.Pipeline),
		slowSource{},
		confidence.NewAssessor(),
		review.NewRouter(store, cfg.Pipeline.ReviewThreshold, log),
		log,
	)
	w, err := NewTriageWorker(
		&Config{RedisAddr: "localhost:6379", Concurrency: 1, Queues: map[string]int{"default": 1}},
		pipe, store, stor, nil, 30*time.Millisecond, log,
	)
	require.NoError(t, err)

	stor.objects["ingest/doc-6.txt"] = []byte("Ordinary report body that passes classification and the quality gate.")
	task := triageTask(t, &queue.TriageJob{DocumentID: "doc-6", ObjectKey: "ingest/doc-6.txt", Filename: "report.txt"})

	// 墙钟预算在提取中途耗尽：不重试，转人工审查
	require.NoError(t, w.handleTriage(context.Background(), task))
	require.Contains(t, store.Reviews, "doc-6")
	assert.Equal(t, "processing timeout", store.Reviews["doc-6"].Reason)
}

func TestHandleTriageMissingObjectIsRetryable(t *testing.T) {
	store := sink.NewMemorySink()
	w := newTestWorker(t, newFakeStorage(), store)

	task := triageTask(t, &queue.TriageJob{DocumentID: "doc-4", ObjectKey: "ingest/missing.txt", Filename: "x.txt"})
	err := w.handleTriage(context.Background(), task)

	// 取回失败交给队列重试，不落终态
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, store.Results)
	assert.Empty(t, store.Reviews)
	assert.Empty(t, store.Rejections)
}
