package render

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// DefaultLanguage is used when the text is too short or ambiguous to classify.
var DefaultLanguage = language.AmericanEnglish

// DetectLanguage guesses the BCP 47 tag of text.
func DetectLanguage(text string) language.Tag {
	if strings.TrimSpace(text) == "" {
		return DefaultLanguage
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return DefaultLanguage
	}
	code := info.Lang.Iso6391()
	if code == "" || code == "en" {
		return DefaultLanguage
	}
	tag, err := language.Parse(code)
	if err != nil {
		return DefaultLanguage
	}
	return tag
}
