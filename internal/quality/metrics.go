package quality

import (
	"image"
	"math"
	"unicode"
	"unicode/utf8"

	"github.com/disintegration/imaging"
)

// laplacianKernel 3x3 拉普拉斯边缘算子
var laplacianKernel = [9]float64{
	0, 1, 0,
	1, -4, 1,
	0, 1, 0,
}

// laplacianVariance 拉普拉斯响应的方差。清晰图像边缘响应分散，方差高；
// 模糊图像响应集中在零附近，方差低。
func laplacianVariance(img image.Image) float64 {
	gray := imaging.Grayscale(img)
	edges := imaging.Convolve3x3(gray, laplacianKernel, &imaging.ConvolveOptions{Abs: true})

	bounds := edges.Bounds()
	n := bounds.Dx() * bounds.Dy()
	if n == 0 {
		return 0
	}

	var sum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			// 灰度图卷积后 RGB 相同，取 R 通道即可
			i := edges.PixOffset(x, y)
			sum += float64(edges.Pix[i])
		}
	}
	mean := sum / float64(n)

	var variance float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := edges.PixOffset(x, y)
			d := float64(edges.Pix[i]) - mean
			variance += d * d
		}
	}
	return variance / float64(n)
}

// rmsContrast 灰度强度的标准差，归一化到 [0,1]
func rmsContrast(img image.Image) float64 {
	gray := imaging.Grayscale(img)
	bounds := gray.Bounds()
	n := bounds.Dx() * bounds.Dy()
	if n == 0 {
		return 0
	}

	var sum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := gray.PixOffset(x, y)
			sum += float64(gray.Pix[i]) / 255.0
		}
	}
	mean := sum / float64(n)

	var variance float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := gray.PixOffset(x, y)
			d := float64(gray.Pix[i])/255.0 - mean
			variance += d * d
		}
	}
	return math.Sqrt(variance / float64(n))
}

// textDensity 可识别文本字符占比。可打印非空白字符计入分子，
// 空白计入分母，非法 UTF-8 和控制字符压低比值。
func textDensity(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var total, printable int
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		i += size
		total++
		if r == utf8.RuneError && size == 1 {
			continue
		}
		if unicode.IsGraphic(r) && !unicode.IsSpace(r) {
			printable++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(printable) / float64(total)
}
