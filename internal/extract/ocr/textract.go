package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/feichai0017/ingest-triage/pkg/logger"
)

// TextractConfig AWS Textract 凭证配置
type TextractConfig struct {
	Region    string
	AccessKey string
	SecretKey string
}

// Textract 云端 OCR 引擎。语言包参数由服务端自行判断，忽略传入的 languages。
type Textract struct {
	client *textract.Client
	logger logger.Logger
}

func NewTextract(ctx context.Context, cfg *TextractConfig, log logger.Logger) (*Textract, error) {
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	return &Textract{
		client: textract.NewFromConfig(awsCfg),
		logger: log,
	}, nil
}

func (t *Textract) Name() string { return "textract" }

func (t *Textract) Recognize(ctx context.Context, img image.Image, _ []string) (*Result, error) {
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	out, err := t.client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{Bytes: buf.Bytes()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to detect document text: %w", err)
	}

	var lines []string
	var total float64
	var n int
	for _, block := range out.Blocks {
		if block.BlockType != types.BlockTypeLine || block.Text == nil {
			continue
		}
		lines = append(lines, *block.Text)
		if block.Confidence != nil {
			total += float64(*block.Confidence)
			n++
		}
	}

	confidence := 0.0
	if n > 0 {
		confidence = total / float64(n) / 100.0
	}

	return &Result{
		Text:           strings.Join(lines, "\n"),
		MeanConfidence: confidence,
	}, nil
}
