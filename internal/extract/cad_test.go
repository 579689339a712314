package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/ingest-triage/internal/models"
	"github.com/feichai0017/ingest-triage/pkg/logger"
)

func cadRequest(filename string, content []byte, source, department string) *Request {
	return &Request{
		Document: &models.Document{
			ID:         "doc-1",
			Filename:   filename,
			Content:    content,
			Source:     source,
			Department: department,
		},
		Detection: &models.TypeDetectionResult{Category: models.CategoryCAD},
		Quality:   &models.QualityAssessment{Decision: models.DecisionProcess},
	}
}

func TestCADExtractTitleBlock(t *testing.T) {
	e := NewCADExtractor(logger.NewTestLogger())

	// DWG 文件里标题栏文本混在二进制流中
	content := append([]byte("AC1027\x00\x01\x02"),
		[]byte("TITLE: COOLING PLANT LAYOUT\x00\x03DWG NO: M-401-B\x00REV: C\x00SCALE: 1:50\x00DATE: 2024-03-12\x00")...)

	res, err := e.Extract(context.Background(), cadRequest("m-401.dwg", content, "facilities", "engineering"))

	require.NoError(t, err)
	assert.False(t, res.Failed)
	assert.Equal(t, models.MethodCADMetadata, res.Method)

	assert.Equal(t, "M-401-B", res.Metadata["drawingNumber"])
	assert.Equal(t, "C", res.Metadata["revision"])
	assert.Equal(t, "1:50", res.Metadata["scale"])
	assert.Equal(t, "2024-03-12", res.Metadata["date"])
	assert.Equal(t, true, res.Metadata["requires_specialized_viewer"])

	assert.Contains(t, res.Text, "Technical drawing: m-401.dwg")
	assert.Contains(t, res.Text, "Drawing number: M-401-B")
	assert.Contains(t, res.Text, "Source: facilities")
	assert.Contains(t, res.Text, "Department: engineering")
}

func TestCADExtractNoFieldsStillSucceeds(t *testing.T) {
	e := NewCADExtractor(logger.NewTestLogger())

	content := append([]byte("AC1032"), []byte{0x00, 0x01, 0x7f, 0xfe, 0xff}...)
	res, err := e.Extract(context.Background(), cadRequest("untitled.dwg", content, "", ""))

	// 永远不失败：没有任何可识别字段也产出非空占位文本
	require.NoError(t, err)
	assert.False(t, res.Failed)
	assert.NotEmpty(t, res.Text)
	assert.Contains(t, res.Text, "No title block fields were recognized.")
	assert.Contains(t, res.Text, "requires a specialized viewer")
	assert.Equal(t, true, res.Metadata["requires_specialized_viewer"])
}

func TestPrintableStrings(t *testing.T) {
	data := []byte("AB\x00LONG RUN HERE\x01\x02ok\x03TAIL")
	out := printableStrings(data, 4)

	assert.Contains(t, out, "LONG RUN HERE")
	assert.Contains(t, out, "TAIL")
	// 低于最短长度的串被丢弃
	assert.NotContains(t, out, "AB\n")
	assert.NotContains(t, out, "ok")
}
