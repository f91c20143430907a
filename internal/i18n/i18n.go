package i18n

import "strings"

type Lang string

const (
	EN Lang = "en"
	HI Lang = "hi"
)

func Parse(s string) Lang {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "hi":
		return HI
	case "en":
		return EN
	default:
		return EN
	}
}

// Detect classifies a message by script: any Devanagari rune makes it
// Hindi, everything else (including empty input) is English.
func Detect(text string) Lang {
	for _, r := range text {
		if r >= 0x0900 && r <= 0x097F {
			return HI
		}
	}
	return EN
}
