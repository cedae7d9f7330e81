package textproc

import "strings"

// Stem reduces an English word to its Porter (1980) stem. Words of length
// two or less pass through unchanged. The suffix tables carry the standard
// revisions to the published algorithm (the logi/log rewrite and the -ian
// family in step 4), so derivational families such as theology, theological,
// theologians and theologies collapse to a single term.
func Stem(word string) string {
	if len(word) <= 2 {
		return word
	}
	w := word
	w = step1a(w)
	w = step1b(w)
	w = step1c(w)
	w = step2(w)
	w = step3(w)
	w = step4(w)
	w = step5a(w)
	w = step5b(w)
	return w
}

// isVowelAt reports whether s[i] acts as a vowel. The letter y is a vowel
// only when preceded by a consonant; at position 0 it is a consonant.
func isVowelAt(s string, i int) bool {
	switch s[i] {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	case 'y':
		return i > 0 && !isVowelAt(s, i-1)
	}
	return false
}

// measure counts the vowel-group to consonant-group alternations in s, the
// m of [C](VC)^m[V] in Porter's notation.
func measure(s string) int {
	m, i := 0, 0
	for i < len(s) && !isVowelAt(s, i) {
		i++
	}
	for i < len(s) {
		for i < len(s) && isVowelAt(s, i) {
			i++
		}
		if i == len(s) {
			break
		}
		m++
		for i < len(s) && !isVowelAt(s, i) {
			i++
		}
	}
	return m
}

func hasVowel(s string) bool {
	for i := range s {
		if isVowelAt(s, i) {
			return true
		}
	}
	return false
}

// endsDoubleConsonant reports whether s ends in two identical consonants.
func endsDoubleConsonant(s string) bool {
	n := len(s)
	return n >= 2 && s[n-1] == s[n-2] && !isVowelAt(s, n-1)
}

// endsCVC reports whether s ends consonant-vowel-consonant where the final
// consonant is not w, x or y. Porter's *o condition.
func endsCVC(s string) bool {
	n := len(s)
	if n < 3 {
		return false
	}
	if isVowelAt(s, n-3) || !isVowelAt(s, n-2) || isVowelAt(s, n-1) {
		return false
	}
	switch s[n-1] {
	case 'w', 'x', 'y':
		return false
	}
	return true
}

// step1a handles plurals: sses, ies, ss, s.
func step1a(w string) string {
	switch {
	case strings.HasSuffix(w, "sses"):
		return w[:len(w)-2]
	case strings.HasSuffix(w, "ies"):
		return w[:len(w)-2]
	case strings.HasSuffix(w, "ss"):
		return w
	case strings.HasSuffix(w, "s"):
		return w[:len(w)-1]
	}
	return w
}

// step1b handles -eed, -ed and -ing, with the at/bl/iz, double-consonant
// and CVC cleanup rules after a removal.
func step1b(w string) string {
	if strings.HasSuffix(w, "eed") {
		if measure(w[:len(w)-3]) > 0 {
			return w[:len(w)-1]
		}
		return w
	}
	if strings.HasSuffix(w, "ed") {
		if stem := w[:len(w)-2]; hasVowel(stem) {
			return step1bCleanup(stem)
		}
		return w
	}
	if strings.HasSuffix(w, "ing") {
		if stem := w[:len(w)-3]; hasVowel(stem) {
			return step1bCleanup(stem)
		}
	}
	return w
}

func step1bCleanup(w string) string {
	switch {
	case strings.HasSuffix(w, "at"), strings.HasSuffix(w, "bl"), strings.HasSuffix(w, "iz"):
		return w + "e"
	case endsDoubleConsonant(w) &&
		!strings.HasSuffix(w, "l") && !strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "z"):
		return w[:len(w)-1]
	case measure(w) == 1 && endsCVC(w):
		return w + "e"
	}
	return w
}

// step1c turns a terminal y into i when the stem contains a vowel.
func step1c(w string) string {
	if strings.HasSuffix(w, "y") && hasVowel(w[:len(w)-1]) {
		return w[:len(w)-1] + "i"
	}
	return w
}

type suffixRule struct {
	suffix  string
	replace string
}

// applyRules replaces the first matching suffix when the remaining stem has
// measure greater than minMeasure. Once a suffix matches, no later rule is
// tried, whether or not the measure condition holds.
func applyRules(w string, rules []suffixRule, minMeasure int) string {
	for _, r := range rules {
		if !strings.HasSuffix(w, r.suffix) {
			continue
		}
		stem := w[:len(w)-len(r.suffix)]
		if measure(stem) > minMeasure {
			return stem + r.replace
		}
		return w
	}
	return w
}

var step2Rules = []suffixRule{
	{"ational", "ate"},
	{"tional", "tion"},
	{"enci", "ence"},
	{"anci", "ance"},
	{"izer", "ize"},
	{"abli", "able"},
	{"alli", "al"},
	{"entli", "ent"},
	{"eli", "e"},
	{"ousli", "ous"},
	{"ization", "ize"},
	{"ation", "ate"},
	{"ator", "ate"},
	{"alism", "al"},
	{"iveness", "ive"},
	{"fulness", "ful"},
	{"ousness", "ous"},
	{"aliti", "al"},
	{"iviti", "ive"},
	{"biliti", "ble"},
}

func step2(w string) string {
	// logi -> log revision, expressed on the ogi suffix so that the
	// preceding l stays part of the measured stem.
	if strings.HasSuffix(w, "ogi") {
		if stem := w[:len(w)-3]; strings.HasSuffix(stem, "l") && measure(stem) > 0 {
			return stem + "og"
		}
		return w
	}
	return applyRules(w, step2Rules, 0)
}

var step3Rules = []suffixRule{
	{"icate", "ic"},
	{"ative", ""},
	{"alize", "al"},
	{"iciti", "ic"},
	{"ical", "ic"},
	{"ful", ""},
	{"ness", ""},
}

func step3(w string) string {
	return applyRules(w, step3Rules, 0)
}

var step4Rules = []suffixRule{
	{"al", ""},
	{"ance", ""},
	{"ence", ""},
	{"er", ""},
	{"ic", ""},
	{"able", ""},
	{"ible", ""},
	{"ant", ""},
	{"ement", ""},
	{"ment", ""},
	{"ent", ""},
	{"ou", ""},
	{"ism", ""},
	{"ate", ""},
	{"iti", ""},
	{"ous", ""},
	{"ive", ""},
	{"ize", ""},
	{"ian", ""},
}

func step4(w string) string {
	// ion deletes only when the stem ends in s or t.
	if strings.HasSuffix(w, "ion") {
		stem := w[:len(w)-3]
		if (strings.HasSuffix(stem, "s") || strings.HasSuffix(stem, "t")) && measure(stem) > 1 {
			return stem
		}
		return w
	}
	return applyRules(w, step4Rules, 1)
}

// step5a drops a terminal e when the measure allows it.
func step5a(w string) string {
	if !strings.HasSuffix(w, "e") {
		return w
	}
	stem := w[:len(w)-1]
	m := measure(stem)
	if m > 1 || (m == 1 && !endsCVC(stem)) {
		return stem
	}
	return w
}

// step5b reduces a terminal double l.
func step5b(w string) string {
	if measure(w) > 1 && endsDoubleConsonant(w) && strings.HasSuffix(w, "l") {
		return w[:len(w)-1]
	}
	return w
}
