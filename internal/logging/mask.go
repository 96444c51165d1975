package logging

import (
	"regexp"
	"strings"
)

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)((?:x-)?api[_-]?(?:key|token)|access[_-]?token|auth[_-]?token|bearer|password)([=:\s]+["']?)([^\s"'&,]+)`),
}

// MaskCredential keeps the first and last four characters of long values
// and stars out the rest.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// MaskSecrets masks key/token assignments embedded in free text such as
// error messages and URLs.
func MaskSecrets(input string) string {
	result := input
	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			sub := pattern.FindStringSubmatch(match)
			if len(sub) != 4 {
				return match
			}
			return sub[1] + sub[2] + MaskCredential(sub[3])
		})
	}
	return result
}
