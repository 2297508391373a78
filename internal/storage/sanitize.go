package storage

import (
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"helixdesk/pkg/apierror"
)

const maxStoredNameRunes = 120

var unsafeFilenameChars = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

var windowsReservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// SanitizeFilename reduces a client supplied filename to a safe base name.
// Directory components are dropped, invisible characters stripped and
// anything outside letters, digits, dot, dash and underscore becomes "_".
func SanitizeFilename(name string) (string, error) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if strings.Contains(trimmed, "\x00") {
		return "", apierror.New("INVALID_FILENAME", "filename contains null bytes", "", http.StatusBadRequest)
	}

	base := filepath.Base(trimmed)

	builder := strings.Builder{}
	builder.Grow(len(base))
	for _, char := range base {
		if unicode.IsControl(char) || unicode.Is(unicode.Cf, char) {
			continue
		}
		builder.WriteRune(char)
	}

	cleaned := unsafeFilenameChars.ReplaceAllString(builder.String(), "_")
	cleaned = strings.TrimLeft(cleaned, ".")

	if cleaned == "" || strings.Trim(cleaned, "_") == "" {
		return "", apierror.New("INVALID_FILENAME", "filename is invalid after sanitization", name, http.StatusBadRequest)
	}

	// Keep the extension when truncating by runes.
	runes := []rune(cleaned)
	if len(runes) > maxStoredNameRunes {
		ext := []rune(filepath.Ext(cleaned))
		if len(ext) > 16 {
			ext = nil
		}
		runes = append(runes[:maxStoredNameRunes-len(ext)], ext...)
	}
	cleaned = string(runes)

	stem := cleaned
	if idx := strings.Index(cleaned, "."); idx >= 0 {
		stem = cleaned[:idx]
	}
	if _, exists := windowsReservedNames[strings.ToUpper(stem)]; exists {
		cleaned = "_" + cleaned
	}

	return cleaned, nil
}
