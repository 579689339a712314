package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/feichai0017/ingest-triage/pkg/logger"
)

// Result 单次识别结果
type Result struct {
	Text           string
	MeanConfidence float64 // [0,1]
}

// Engine OCR 引擎。无状态，每次调用独立，阶段之间不持有连接。
type Engine interface {
	Recognize(ctx context.Context, img image.Image, languages []string) (*Result, error)
	Name() string
}

// Tesseract 本地 tesseract 引擎
type Tesseract struct {
	logger        logger.Logger
	minConfidence float64
}

func NewTesseract(log logger.Logger) *Tesseract {
	return &Tesseract{
		logger:        log,
		minConfidence: 30.0,
	}
}

func (t *Tesseract) Name() string { return "tesseract" }

// Recognize 每次调用创建新的 tesseract 客户端
func (t *Tesseract) Recognize(ctx context.Context, img image.Image, languages []string) (*Result, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(languages...); err != nil {
		return nil, fmt.Errorf("failed to set language %q: %w", strings.Join(languages, "+"), err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 100}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("failed to get text: %w", err)
	}

	confidence := 0.0
	boxes, err := client.GetBoundingBoxesVerbose()
	if err != nil {
		t.logger.Warn("Failed to get bounding boxes", logger.Error(err))
	} else {
		var total float64
		var n int
		for _, box := range boxes {
			if box.Confidence >= t.minConfidence {
				total += box.Confidence
				n++
			}
		}
		if n > 0 {
			confidence = total / float64(n) / 100.0
		}
	}

	return &Result{Text: text, MeanConfidence: confidence}, nil
}
