package pdfscan

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// minPageChars 页面计入"有文本"所需的最少非空白字符数
const minPageChars = 40

// PageScan 浅层页面扫描结果
type PageScan struct {
	PagesScanned int
	TextPages    int
	ImageObjects int
	// SampleText 扫描页取到的文本，供质量评估计算文本密度
	SampleText string
}

var imageObjectRe = regexp.MustCompile(`/Subtype\s*/Image`)

// countNonSpace 统计字符串中的非空白字符数
func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// Scan 对 PDF 前 maxPages 页做浅层扫描：统计含可提取文本的页数和
// 嵌入的图像对象数。解析失败返回 error，调用方按纯图 PDF 处理。
func Scan(content []byte, maxPages int) (scan PageScan, err error) {
	// ledongthuc/pdf 对畸形文件可能 panic
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf scan panic: %v", r)
		}
	}()

	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return PageScan{}, fmt.Errorf("open pdf: %w", err)
	}

	numPages := pdfReader.NumPage()
	if numPages > maxPages {
		numPages = maxPages
	}

	var sample strings.Builder
	for i := 1; i <= numPages; i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}
		scan.PagesScanned++

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if countNonSpace(text) >= minPageChars {
			scan.TextPages++
			sample.WriteString(text)
			sample.WriteByte('\n')
		}
	}

	scan.ImageObjects = len(imageObjectRe.FindAllIndex(content, -1))
	scan.SampleText = sample.String()
	return scan, nil
}

// ExtractText 提取 PDF 全部页面的文本层
func ExtractText(content []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf text extraction panic: %v", r)
		}
	}()

	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= pdfReader.NumPage(); i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

var (
	streamMarker    = []byte("stream")
	endstreamMarker = []byte("endstream")
	dctFilter       = []byte("DCTDecode")
)

// EmbeddedJPEGs 从原始 PDF 字节中抽取 DCTDecode（JPEG）图像对象流。
// 只认本体为 JPEG 的流，其他压缩格式由调用方按不可解码处理。
func EmbeddedJPEGs(content []byte, max int) [][]byte {
	var images [][]byte
	offset := 0
	for len(images) < max {
		idx := bytes.Index(content[offset:], streamMarker)
		if idx < 0 {
			break
		}
		start := offset + idx
		offset = start + len(streamMarker)

		// 回看对象字典，确认是 DCTDecode 图像流
		dictFrom := start - 512
		if dictFrom < 0 {
			dictFrom = 0
		}
		dict := content[dictFrom:start]
		if !imageObjectRe.Match(dict) || !bytes.Contains(dict, dctFilter) {
			continue
		}

		// 流数据在 "stream" 关键字加换行之后
		data := content[offset:]
		if bytes.HasPrefix(data, []byte("\r\n")) {
			data = data[2:]
		} else if bytes.HasPrefix(data, []byte("\n")) {
			data = data[1:]
		}
		end := bytes.Index(data, endstreamMarker)
		if end < 0 {
			break
		}
		body := bytes.TrimRight(data[:end], "\r\n")
		if len(body) > 0 {
			images = append(images, body)
		}
	}
	return images
}
