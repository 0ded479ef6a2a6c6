package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected int
	}{
		{"empty", "", 0},
		{"short ascii", "test", 1},
		{"eight ascii chars", "testtest", 2},
		{"cjk pair", "你好", 2},
		{"hiragana", "こんにちは", 4},
		{"mixed", "hi你", 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, EstimateTokens(tc.text))
		})
	}
}
