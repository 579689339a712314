package extract

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// preprocessor 图像预处理步骤
type preprocessor interface {
	Process(img image.Image) (image.Image, error)
}

// denoiseProcessor 高斯模糊降噪
type denoiseProcessor struct {
	strength float64
}

func (p *denoiseProcessor) Process(img image.Image) (image.Image, error) {
	return imaging.Blur(img, p.strength), nil
}

// contrastNormalizationProcessor 对比度归一化
type contrastNormalizationProcessor struct{}

func (p *contrastNormalizationProcessor) Process(img image.Image) (image.Image, error) {
	return imaging.AdjustContrast(img, 20), nil
}

// sharpenProcessor 锐化
type sharpenProcessor struct {
	strength float64
}

func (p *sharpenProcessor) Process(img image.Image) (image.Image, error) {
	return imaging.Sharpen(img, p.strength), nil
}

// enhancementChain 固定增强序列：降噪 -> 对比度归一化 -> 锐化。
// 只在质量门裁决为 enhance 时执行。
func enhancementChain() []preprocessor {
	return []preprocessor{
		&denoiseProcessor{strength: 0.8},
		&contrastNormalizationProcessor{},
		&sharpenProcessor{strength: 1.0},
	}
}

func applyEnhancement(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}

	result := img
	for _, p := range enhancementChain() {
		var err error
		result, err = p.Process(result)
		if err != nil {
			return nil, fmt.Errorf("enhancement failed: %w", err)
		}
		if result == nil {
			return nil, fmt.Errorf("preprocessor returned nil image")
		}
	}
	return result, nil
}
