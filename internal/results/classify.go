package results

import (
	"strings"
	"unicode"
)

var knownColors = map[string]struct{}{
	"red":    {},
	"black":  {},
	"green":  {},
	"blue":   {},
	"yellow": {},
	"white":  {},
	"purple": {},
	"orange": {},
	"gold":   {},
	"silver": {},
}

// ClassifyResult infers the result type from the raw result text.
func ClassifyResult(result string) ResultType {
	s := strings.TrimSpace(result)
	if s == "" {
		return ResultText
	}
	if isDigits(s) {
		return ResultNumber
	}
	runes := []rune(s)
	if len(runes) == 1 && unicode.IsLetter(runes[0]) {
		return ResultCard
	}
	if _, ok := knownColors[strings.ToLower(s)]; ok {
		return ResultColor
	}
	return ResultText
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
