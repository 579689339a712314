package confidence

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/feichai0017/ingest-triage/internal/models"
)

// 各信号的权重。信号按总字符数的占比计入，正常英文文本里
// 合法的单字符词（a、I）和双写字母占比很小，不会显著压低置信度。
const (
	weightIsolated = 2.0
	weightRepeated = 0.5
	weightCaseFlip = 1.5
)

// Assessor 提取后置信度评估。与提取前质量分独立：画质良好的图
// 也可能 OCR 出垃圾文本，必须在这里拦住。
type Assessor struct{}

func NewAssessor() *Assessor {
	return &Assessor{}
}

// Assess 统计 OCR 伪影信号：孤立单字符"词"、相邻重复字母、
// 词内大小写跳变。置信度 = 1 - 加权占比和，下限 0。
func (a *Assessor) Assess(text string, lang models.Language) *models.ConfidenceScore {
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return &models.ConfidenceScore{Value: 0}
	}

	isolated := countIsolatedChars(text)
	repeated := countRepeatedChars(text)
	caseFlips := countCaseTransitions(text)

	penalty := weightIsolated*ratio(isolated, total) +
		weightRepeated*ratio(repeated, total) +
		weightCaseFlip*ratio(caseFlips, total)

	value := 1.0 - penalty
	if value < 0 {
		value = 0
	}

	return &models.ConfidenceScore{
		Value:           value,
		IsolatedChars:   isolated,
		RepeatedChars:   repeated,
		CaseTransitions: caseFlips,
	}
}

func ratio(count, total int) float64 {
	return float64(count) / float64(total)
}

// countIsolatedChars 长度为 1 的字母"词"，常见 OCR 噪声
func countIsolatedChars(text string) int {
	count := 0
	for _, field := range strings.Fields(text) {
		runes := []rune(field)
		if len(runes) == 1 && unicode.IsLetter(runes[0]) {
			count++
		}
	}
	return count
}

// countRepeatedChars 相邻相同的字母对
func countRepeatedChars(text string) int {
	count := 0
	var prev rune
	for _, r := range text {
		if r == prev && unicode.IsLetter(r) {
			count++
		}
		prev = r
	}
	return count
}

// countCaseTransitions 单个词内的小写转大写跳变
func countCaseTransitions(text string) int {
	count := 0
	for _, field := range strings.Fields(text) {
		var prev rune
		for _, r := range field {
			if unicode.IsLower(prev) && unicode.IsUpper(r) {
				count++
			}
			prev = r
		}
	}
	return count
}
