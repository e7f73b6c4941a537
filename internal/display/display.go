// Package display maps market and service abbreviations to report
// display names.
package display

import "strings"

var marketNames = map[string]string{
	"ifm": "Integrated Forward Market",
	"fmm": "15-Minute Market",
	"rtd": "Real-Time Dispatch",
	"ruc": "Residual Unit Commitment",
}

var serviceNames = map[string]string{
	"energy": "Energy",
	"sr":     "Spinning Reserve",
	"nsr":    "Non-Spinning Reserve",
	"rd":     "Regulation Down",
	"ru":     "Regulation Up",
}

func resolveWord(word string) string {
	if name, ok := marketNames[word]; ok {
		return name
	}
	if name, ok := serviceNames[word]; ok {
		return name
	}
	return word
}

// delimiters splitting compound labels like "ifm energy" or "fmm_ru".
const delimiters = " ;.-_"

// Formatter resolves raw labels to display names, memoizing results;
// report tables format the same handful of labels thousands of times.
type Formatter struct {
	cache map[string]string
}

func NewFormatter() *Formatter {
	return &Formatter{cache: map[string]string{}}
}

// Format renders one label without consulting the cache.
func Format(label string) string {
	words := strings.FieldsFunc(label, func(r rune) bool {
		return strings.ContainsRune(delimiters, r)
	})
	for i, w := range words {
		words[i] = resolveWord(w)
	}
	return strings.Join(words, " ")
}

// Resolve renders one label through the cache.
func (f *Formatter) Resolve(label string) string {
	if formatted, ok := f.cache[label]; ok {
		return formatted
	}
	formatted := Format(label)
	f.cache[label] = formatted
	return formatted
}

// ResolveAll renders a batch of labels.
func (f *Formatter) ResolveAll(labels []string) []string {
	out := make([]string, len(labels))
	for i, label := range labels {
		out[i] = f.Resolve(label)
	}
	return out
}
