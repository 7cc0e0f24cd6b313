package llm

import "strings"

// CleanJSONBlock removes markdown code block wrappers and conversational
// preamble or trailing text from JSON responses.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = stripFence(text)
	}

	if text == "" || text[0] == '{' || text[0] == '[' {
		if out := extractJSONValue(text); out != "" {
			return out
		}
		return text
	}

	// Preamble: take the first balanced object or array after it.
	objIdx := strings.Index(text, "{")
	arrIdx := strings.Index(text, "[")
	start := objIdx
	if start < 0 || (arrIdx >= 0 && arrIdx < start) {
		start = arrIdx
	}
	if start < 0 {
		return text
	}
	if out := extractJSONValue(text[start:]); out != "" {
		return out
	}
	return text
}

func stripFence(text string) string {
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
	} else {
		text = strings.TrimPrefix(text, "```")
		// Skip potential language identifier on first line
		if idx := strings.Index(text, "\n"); idx >= 0 {
			firstLine := text[:idx]
			if len(firstLine) < 20 && !strings.Contains(firstLine, " ") && !strings.Contains(firstLine, "{") {
				text = text[idx+1:]
			}
		}
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// extractJSONValue returns the balanced object or array starting at text[0].
func extractJSONValue(text string) string {
	if strings.HasPrefix(text, "{") {
		return extractBalanced(text, '{', '}')
	}
	return extractBalanced(text, '[', ']')
}

// extractBalanced scans to the bracket that closes text[0], skipping
// brackets inside string literals.
func extractBalanced(text string, open, close byte) string {
	if text == "" || text[0] != open {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[:i+1]
			}
		}
	}
	return ""
}
