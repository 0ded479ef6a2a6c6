package openai

import "math"

// EstimateTokens approximates a token count when the upstream omits eval
// counters. CJK characters average ~1.5 characters per token, everything
// else ~4.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	var cjk, other int
	for _, r := range text {
		if isCJK(r) {
			cjk++
		} else {
			other++
		}
	}

	return int(math.Ceil(float64(cjk)/1.5 + float64(other)/4))
}

func isCJK(r rune) bool {
	switch {
	case r >= 0x3040 && r <= 0x309F: // hiragana
		return true
	case r >= 0x30A0 && r <= 0x30FF: // katakana
		return true
	case r >= 0x3400 && r <= 0x4DBF: // CJK extension A
		return true
	case r >= 0x4E00 && r <= 0x9FFF: // CJK unified
		return true
	case r >= 0xAC00 && r <= 0xD7AF: // hangul
		return true
	}
	return false
}
