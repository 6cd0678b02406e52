// Package naming turns source folder names into bundle chunk identifiers.
package naming

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CamelCase converts a folder name such as "content-script" or
// "XMLHttp_panel" into a chunk name ("contentScript", "xmlHttpPanel").
//
// Words are split on separators, on lower to upper case transitions and at
// the end of an upper case run that is followed by a capitalised word.
// Digit runs form their own words and are left as is, except ordinals
// like "3rd" which stay whole.
func CamelCase(s string) string {
	words := Words(deburr(s))
	if len(words) == 0 {
		return ""
	}

	lower := cases.Lower(language.Und)
	title := cases.Title(language.Und)

	var b strings.Builder
	for i, w := range words {
		if i == 0 {
			b.WriteString(lower.String(w))
			continue
		}
		if r := []rune(w)[0]; !unicode.IsLetter(r) {
			// only the first rune is capitalised, "3rd" stays "3rd"
			b.WriteString(lower.String(w))
			continue
		}
		b.WriteString(title.String(w))
	}
	return b.String()
}

// Words splits s into the words CamelCase joins.
func Words(s string) []string {
	s = strings.NewReplacer("'", "", "’", "").Replace(s)

	var words []string
	for _, run := range strings.FieldsFunc(s, isSeparator) {
		words = append(words, splitRun([]rune(run))...)
	}
	return words
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// splitRun splits a run of letters and digits at case and digit boundaries.
// Ordinals such as "1st", "22nd" or "4th" stay one word.
func splitRun(rs []rune) []string {
	var (
		words  []string
		start  int
		ordEnd int
	)
	for i := 1; i < len(rs); i++ {
		prev, cur := rs[i-1], rs[i]
		var next rune
		if i+1 < len(rs) {
			next = rs[i+1]
		}

		if i < ordEnd {
			continue
		}

		split := false
		switch {
		case i == ordEnd:
			split = true
		case unicode.IsDigit(prev) && ordinalAt(rs, i):
			ordEnd = i + 2
		case unicode.IsDigit(prev) != unicode.IsDigit(cur):
			split = true
		case unicode.IsLower(prev) && unicode.IsUpper(cur):
			split = true
		case unicode.IsUpper(prev) && unicode.IsUpper(cur) && unicode.IsLower(next):
			// "XMLHttp": the last upper case rune starts the next word
			split = true
		}

		if split {
			words = append(words, string(rs[start:i]))
			start = i
		}
	}
	if start < len(rs) {
		words = append(words, string(rs[start:]))
	}
	return words
}

// ordinalAt reports whether rs[i:i+2] is the suffix of an ordinal whose
// last digit is rs[i-1]: 1st, 2nd, 3rd, or th after any other digit. A
// lower case suffix must end the run or precede an upper case rune, an
// upper case suffix must end the run or precede a lower case rune.
func ordinalAt(rs []rune, i int) bool {
	if i+2 > len(rs) {
		return false
	}

	suffix := string(rs[i : i+2])
	upper := suffix == strings.ToUpper(suffix)

	var want string
	switch rs[i-1] {
	case '1':
		want = "st"
	case '2':
		want = "nd"
	case '3':
		want = "rd"
	default:
		want = "th"
	}
	if strings.ToLower(suffix) != want {
		return false
	}
	if suffix != want && !upper {
		return false
	}

	if i+2 == len(rs) {
		return true
	}
	after := rs[i+2]
	if upper {
		return unicode.IsLower(after)
	}
	return unicode.IsUpper(after)
}

// deburr strips combining marks so "café" becomes "cafe".
func deburr(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
