package pdfscan

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imageObject(data []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "4 0 obj\n<< /Type /XObject /Subtype /Image /Filter /DCTDecode /Length %d >>\nstream\n", len(data))
	buf.Write(data)
	buf.WriteString("\nendstream\nendobj\n")
	return buf.Bytes()
}

func TestEmbeddedJPEGs(t *testing.T) {
	first := []byte("\xff\xd8\xff\xe0first-jpeg-payload")
	second := []byte("\xff\xd8\xff\xe0second-jpeg-payload")

	var content bytes.Buffer
	content.WriteString("%PDF-1.4\n")
	content.Write(imageObject(first))
	content.Write(imageObject(second))

	images := EmbeddedJPEGs(content.Bytes(), 8)

	require.Len(t, images, 2)
	assert.Equal(t, first, images[0])
	assert.Equal(t, second, images[1])
}

func TestEmbeddedJPEGsRespectsLimit(t *testing.T) {
	var content bytes.Buffer
	content.WriteString("%PDF-1.4\n")
	for i := 0; i < 5; i++ {
		content.Write(imageObject([]byte(fmt.Sprintf("\xff\xd8\xffpayload-%d", i))))
	}

	assert.Len(t, EmbeddedJPEGs(content.Bytes(), 3), 3)
}

func TestEmbeddedJPEGsSkipsNonImageStreams(t *testing.T) {
	var content bytes.Buffer
	content.WriteString("%PDF-1.4\n")
	// 字体流：有 stream 标记但不是 DCTDecode 图像对象
	content.WriteString("5 0 obj\n<< /Type /Font /Length 10 >>\nstream\nfont-bytes\nendstream\nendobj\n")
	content.Write(imageObject([]byte("\xff\xd8\xffreal-image")))

	images := EmbeddedJPEGs(content.Bytes(), 8)

	require.Len(t, images, 1)
	assert.Equal(t, []byte("\xff\xd8\xffreal-image"), images[0])
}

func TestScanMalformedPDF(t *testing.T) {
	_, err := Scan([]byte("%PDF-1.7\nnot a valid document"), 5)
	assert.Error(t, err)
}

func TestExtractTextMalformedPDF(t *testing.T) {
	_, err := ExtractText([]byte("random bytes, not a pdf"))
	assert.Error(t, err)
}
