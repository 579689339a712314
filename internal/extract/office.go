package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/xuri/excelize/v2"
)

// extractDocx 从 ZIP 容器读 word/document.xml，流式解析段落文本
func extractDocx(content []byte) (string, error) {
	return extractZipXML(content, "word/document.xml", "p", "t")
}

// extractODT 同理，ODT 的正文在 content.xml 里
func extractODT(content []byte) (string, error) {
	return extractZipXML(content, "content.xml", "p", "")
}

// extractZipXML 通用的 Office ZIP 容器解析：paraTag 结束时换行，
// textTag 非空时只收集该标签内的字符数据。
func extractZipXML(content []byte, entry, paraTag, textTag string) (string, error) {
	r, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open zip: %w", err)
	}

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == entry {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("%s not found in archive", entry)
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", entry, err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var sb strings.Builder
	var inText bool
	collectAll := textTag == ""

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", entry, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == textTag {
				inText = true
			}
		case xml.CharData:
			if inText || collectAll {
				sb.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case textTag:
				inText = false
			case paraTag:
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String(), nil
}

// extractXLSX 逐表逐行展开为制表符分隔的文本
func extractXLSX(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		sb.WriteString(sheet)
		sb.WriteByte('\n')
		for _, row := range rows {
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}

// extractHTML HTML 转 Markdown，保留标题和列表结构供下游索引
func extractHTML(content []byte) (string, error) {
	markdown, err := htmltomarkdown.ConvertString(string(content))
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}
	return markdown, nil
}
