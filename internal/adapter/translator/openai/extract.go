package openai

import "github.com/tidwall/gjson"

// ExtractModelName pulls the model field out of a raw request body without a
// full unmarshal, for routing decisions that happen before translation.
func ExtractModelName(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	result := gjson.GetBytes(body, "model")
	if result.Type == gjson.String {
		return result.String()
	}
	return ""
}

// ExtractStreamFlag reports whether the raw body asks for streaming.
// Absent means false.
func ExtractStreamFlag(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	return gjson.GetBytes(body, "stream").Bool()
}
