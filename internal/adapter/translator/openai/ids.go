package openai

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

const toolCallAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewChatID returns a "chatcmpl-" id with 24 hex characters.
func NewChatID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "chatcmpl-000000000000000000000000"
	}
	return "chatcmpl-" + hex.EncodeToString(b[:])
}

// NewToolCallID returns a "call_" id with 24 alphanumeric characters.
func NewToolCallID() string {
	var b [24]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "call_000000000000000000000000"
	}
	var sb strings.Builder
	sb.Grow(len("call_") + len(b))
	sb.WriteString("call_")
	for _, c := range b {
		sb.WriteByte(toolCallAlphabet[int(c)%len(toolCallAlphabet)])
	}
	return sb.String()
}

// SystemFingerprint derives the fingerprint shown to OpenAI clients from the
// model name, keeping only [a-z0-9].
func SystemFingerprint(model string) string {
	var sb strings.Builder
	sb.Grow(len("fp_ollama_") + len(model))
	sb.WriteString("fp_ollama_")
	for _, r := range strings.ToLower(model) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
