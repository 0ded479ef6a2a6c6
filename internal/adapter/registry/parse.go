package registry

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/ollagate/ollagate/internal/core/domain"
	"github.com/ollagate/ollagate/internal/util"
)

// DefaultBaseURL is assumed for bare keys with no URL of their own.
const DefaultBaseURL = "https://ollama.com/api"

// keys embedded in a URL path must look key-ish: long and URL-safe
var trailingKeyPattern = regexp.MustCompile(`/([A-Za-z0-9_.-]{20,})$`)

// ParseKeyString turns one operator-supplied line into a credential.
// Accepted forms:
//
//	key
//	url|key   or   key|url
//	url#key
//	url/key   (key tail of 20+ URL-safe chars)
func ParseKeyString(raw, defaultBaseURL string) (*domain.Credential, error) {
	input := strings.TrimSpace(raw)
	if input == "" {
		return nil, fmt.Errorf("empty key string")
	}
	if defaultBaseURL == "" {
		defaultBaseURL = DefaultBaseURL
	}

	var baseURL, key string

	switch {
	case strings.Contains(input, "|"):
		parts := strings.SplitN(input, "|", 2)
		if strings.HasPrefix(parts[0], "http") {
			baseURL, key = parts[0], parts[1]
		} else {
			baseURL, key = parts[1], parts[0]
		}
	case strings.HasPrefix(input, "http") && strings.Contains(input, "#"):
		idx := strings.LastIndex(input, "#")
		baseURL, key = input[:idx], input[idx+1:]
	case strings.HasPrefix(input, "http") && trailingKeyPattern.MatchString(input):
		idx := strings.LastIndex(input, "/")
		baseURL, key = input[:idx], input[idx+1:]
	default:
		baseURL, key = defaultBaseURL, input
	}

	baseURL = util.NormalizeBaseURL(baseURL)
	key = strings.TrimSpace(key)

	cred := &domain.Credential{
		ID:      uuid.NewString(),
		Key:     key,
		BaseURL: baseURL,
		Enabled: true,
		Healthy: true,
		AddedAt: domain.Now(),
		Weight:  domain.DefaultWeight,
	}
	cred.Name = cred.MaskedKey()
	return cred, nil
}
