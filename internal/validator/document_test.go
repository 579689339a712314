package validator

import (
	"bytes"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/ingest-triage/pkg/logger"
)

// fileHeader 构造真实的 multipart 文件头
func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["file"][0]
}

func TestValidateAcceptsOrdinaryFile(t *testing.T) {
	v := NewDocumentValidator(logger.NewTestLogger(), nil)

	res, err := v.ValidateFile(fileHeader(t, "notes.txt", []byte("plain text body")))

	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Equal(t, ".txt", res.FileInfo.Extension)
	assert.Len(t, res.FileInfo.Hash, 64)
	assert.Contains(t, res.FileInfo.MimeType, "text/plain")
}

func TestValidateAcceptsUnknownExtension(t *testing.T) {
	v := NewDocumentValidator(logger.NewTestLogger(), nil)

	// 未知类型不在接入层拦截，由分诊决定去向
	res, err := v.ValidateFile(fileHeader(t, "dump.xyz", []byte{0x00, 0x01, 0x02, 0x03}))

	require.NoError(t, err)
	assert.True(t, res.IsValid)
}

func TestValidateRejectsBlockedExtension(t *testing.T) {
	v := NewDocumentValidator(logger.NewTestLogger(), nil)

	res, err := v.ValidateFile(fileHeader(t, "setup.exe", []byte("MZ binary")))

	require.NoError(t, err)
	assert.False(t, res.IsValid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "BLOCKED_FILE_TYPE", res.Errors[0].Code)
}

func TestValidateRejectsEmptyFile(t *testing.T) {
	v := NewDocumentValidator(logger.NewTestLogger(), nil)

	res, err := v.ValidateFile(fileHeader(t, "empty.pdf", nil))

	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Equal(t, "EMPTY_FILE", res.Errors[0].Code)
}

func TestValidateRejectsOversizeFile(t *testing.T) {
	v := NewDocumentValidator(logger.NewTestLogger(), &ValidatorConfig{
		MaxFileSize:       16,
		BlockedExtensions: map[string]bool{},
	})

	res, err := v.ValidateFile(fileHeader(t, "big.txt", bytes.Repeat([]byte("x"), 64)))

	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Equal(t, "FILE_TOO_LARGE", res.Errors[0].Code)
}
