// Package secrets detects and masks likely-sensitive values so that step
// logs, StepResult embeds, and JUnit system-out never leak tokens, API keys,
// or passwords captured from headers, cookies, or request/response bodies.
package secrets

import (
	"regexp"
	"strings"
)

// valuePatterns matches values that look like secrets regardless of the key
// they were stored under.
var valuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(sk|pk|api|key|token|secret|password|passwd|pwd|auth|bearer|jwt|access|refresh)[-_]?[a-zA-Z0-9]{8,}`),
	regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`(?i)^bearer\s+[a-zA-Z0-9_\-.]+`),
	regexp.MustCompile(`(?i)^basic\s+[a-zA-Z0-9+/=]+`),
	regexp.MustCompile(`ghp_[a-zA-Z0-9]{36}`),
	regexp.MustCompile(`github_pat_[a-zA-Z0-9_]{22,}`),
	regexp.MustCompile(`xox[baprs]-[a-zA-Z0-9\-]+`),
	regexp.MustCompile(`(?i)^ey[a-zA-Z0-9_\-]+\.[a-zA-Z0-9_\-]+\.`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?i)^[a-f0-9]{40}$`),
	regexp.MustCompile(`(?i)^[a-f0-9]{64}$`),
	regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`),
}

// keyPatterns matches header/variable/config key names that conventionally
// hold sensitive values, independent of what the value looks like.
var keyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)`),
	regexp.MustCompile(`(?i)(secret[_-]?key|secretkey)`),
	regexp.MustCompile(`(?i)(access[_-]?key|accesskey)`),
	regexp.MustCompile(`(?i)(auth[_-]?token|authtoken)`),
	regexp.MustCompile(`(?i)(bearer[_-]?token|bearertoken)`),
	regexp.MustCompile(`(?i)(password|passwd|pwd)`),
	regexp.MustCompile(`(?i)(private[_-]?key|privatekey)`),
	regexp.MustCompile(`(?i)(client[_-]?secret|clientsecret)`),
	regexp.MustCompile(`(?i)(refresh[_-]?token|refreshtoken)`),
	regexp.MustCompile(`(?i)^authorization$`),
	regexp.MustCompile(`(?i)^cookie$`),
	regexp.MustCompile(`(?i)^set-cookie$`),
}

// IsSensitive reports whether the key or value looks like it holds a secret.
func IsSensitive(key, value string) bool {
	for _, p := range keyPatterns {
		if p.MatchString(key) {
			return true
		}
	}
	return looksLikeSecretValue(value)
}

func looksLikeSecretValue(value string) bool {
	if len(value) < 8 {
		return false
	}
	for _, p := range valuePatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

// Mask returns a redacted version of value suitable for logs and reports:
// short values become "****"; longer values keep a short prefix/suffix.
func Mask(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	if len(value) < 12 {
		return value[:2] + "..." + value[len(value)-2:]
	}
	return value[:4] + "..." + value[len(value)-4:]
}

// MaskHeaders returns a copy of headers with sensitive values masked,
// preserving header names, for use in StepResult embeds and JUnit system-out.
func MaskHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if IsSensitive(k, v) {
			out[k] = Mask(v)
		} else {
			out[k] = v
		}
	}
	return out
}

// RedactText masks {{VAR}}-style interpolations whose name looks sensitive,
// leaving the rest of a log line intact.
func RedactText(text string) string {
	var sb strings.Builder
	i := 0
	for i < len(text) {
		start := strings.Index(text[i:], "{{")
		if start < 0 {
			sb.WriteString(text[i:])
			break
		}
		start += i
		end := strings.Index(text[start:], "}}")
		if end < 0 {
			sb.WriteString(text[i:])
			break
		}
		end += start
		sb.WriteString(text[i:start])
		name := text[start+2 : end]
		sb.WriteString("{{")
		if nameLooksSensitive(name) {
			sb.WriteString("***")
		} else {
			sb.WriteString(name)
		}
		sb.WriteString("}}")
		i = end + 2
	}
	return sb.String()
}

func nameLooksSensitive(name string) bool {
	for _, p := range keyPatterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}
