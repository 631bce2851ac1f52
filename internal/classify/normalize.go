package classify

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Markup is only stripped when the text carries real tags or entities, so
// SMS text like "Pay <KES 100>" survives untouched.
var markupRe = regexp.MustCompile(`(?i)</?(a|b|i|u|p|br|hr|div|span|strong|em|font|table|tr|td|html|body|head|style|script)\b[^>]*>|&(amp|lt|gt|quot|apos|nbsp|#\d+);`)

// Normalize prepares a message for the classifier: strips HTML, collapses
// whitespace and truncates to maxChars runes (0 = no limit).
func Normalize(text string, maxChars int) string {
	s := text
	if markupRe.MatchString(s) {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			doc.Find("script, style").Remove()
			s = doc.Text()
		}
	}
	s = strings.Join(strings.Fields(s), " ")
	if maxChars > 0 {
		if r := []rune(s); len(r) > maxChars {
			s = string(r[:maxChars])
		}
	}
	return s
}
