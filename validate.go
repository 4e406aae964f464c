package cortex

import (
	"strings"
	"unicode"
)

// maxRequestText caps accepted request text length.
const maxRequestText = 32_000

// defaultValidator enforces the baseline payload contract: non-empty text
// within the length cap, with control characters stripped from the sanitized
// form.
type defaultValidator struct{}

func (defaultValidator) ValidateRequest(req Request) Validation {
	var issues []string

	trimmed := strings.TrimSpace(req.Text)
	if trimmed == "" {
		issues = append(issues, "text is required")
	}
	if len(req.Text) > maxRequestText {
		issues = append(issues, "text exceeds maximum length")
	}
	if req.ClientID == "" {
		issues = append(issues, "client_id is required")
	}

	if len(issues) > 0 {
		return Validation{Valid: false, Issues: issues}
	}

	sanitized := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, trimmed)

	return Validation{Valid: true, SanitizedText: sanitized}
}
