// Package material normalizes the material descriptors stored on CAD objects
// and derives the stock category of a record from them.
//
// Descriptors come in the semicolon form written by the CAD material
// library, for example
//
//	Лист х/к(0.5);$d2.0;AISI 304
//
// which normalizes to "Лист 2.0 мм AISI 304": surface-finish annotations are
// stripped, $d<n> is the thickness token and the remaining segment is the
// grade.
package material

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultGrade is used when a descriptor has a thickness but no grade.
const DefaultGrade = "Ст3"

// reThicknessToken matches the embedded thickness token: $d2.0, $d 1,5
var reThicknessToken = regexp.MustCompile(`\$[dD]\s*(\d+(?:[.,]\d+)?)`)

// reParenthesized matches annotations in parentheses, e.g. the finish class (0.5).
var reParenthesized = regexp.MustCompile(`\([^)]*\)`)

// reFinish matches a surface-finish word: х/к (cold rolled), г/к (hot
// rolled), оц / оцинк. (galvanized).
var reFinish = regexp.MustCompile(`^(?:[хгХГ]/[кК]|(?i:оц|оц\.|оцинк\.?|цинк\.?))$`)

// Normalizer turns raw descriptors into "base thickness мм grade" strings.
type Normalizer struct {
	// DefaultGrade replaces a missing grade when a thickness is present.
	DefaultGrade string
}

// Descriptor is a parsed material descriptor.
type Descriptor struct {
	// Text is the normalized form shown in listings and used as the
	// aggregation key.
	Text string

	// Thickness is the $d token of the raw descriptor, with a decimal
	// point. It is empty when the raw descriptor carries none.
	Thickness string
}

// Normalize normalizes raw with the package default grade.
func Normalize(raw string) string {
	return Normalizer{DefaultGrade: DefaultGrade}.Normalize(raw)
}

// Parse parses raw with the package default grade.
func Parse(raw string) Descriptor {
	return Normalizer{DefaultGrade: DefaultGrade}.Parse(raw)
}

// Normalize returns the normalized form of raw.
func (n Normalizer) Normalize(raw string) string {
	return n.Parse(raw).Text
}

// Parse normalizes raw and keeps its thickness token. A descriptor with
// neither a thickness nor a grade token is returned trimmed, whatever it
// spells out in free text. Normalizing a normalized descriptor returns it
// unchanged.
func (n Normalizer) Parse(raw string) Descriptor {
	s := norm.NFC.String(strings.TrimSpace(raw))
	if !strings.ContainsAny(s, ";$") {
		return Descriptor{Text: s}
	}

	segments := strings.Split(s, ";")
	base := segments[0]
	thickness := ""
	if t := reThicknessToken.FindStringSubmatch(base); t != nil {
		thickness = t[1]
		base = reThicknessToken.ReplaceAllString(base, " ")
	}

	var grade []string
	for _, seg := range segments[1:] {
		if thickness == "" {
			if t := reThicknessToken.FindStringSubmatch(seg); t != nil {
				thickness = t[1]
				seg = reThicknessToken.ReplaceAllString(seg, " ")
			}
		}
		if g := collapse(seg); g != "" {
			grade = append(grade, g)
		}
	}
	thickness = strings.Replace(thickness, ",", ".", 1)

	if thickness == "" && len(grade) == 0 {
		return Descriptor{Text: s}
	}
	base = cleanBase(base)
	g := strings.Join(grade, " ")
	if thickness == "" {
		return Descriptor{Text: joinNonEmpty(base, g)}
	}
	if g == "" {
		g = n.DefaultGrade
	}
	return Descriptor{Text: assemble(base, thickness, g), Thickness: thickness}
}

// cleanBase strips finish annotations and canonicalizes the stock form word.
func cleanBase(base string) string {
	base = reParenthesized.ReplaceAllString(base, " ")
	var words []string
	for _, w := range strings.Fields(base) {
		if reFinish.MatchString(w) {
			continue
		}
		words = append(words, w)
	}
	if len(words) > 0 {
		if f := MatchForm(words[0]); f != nil {
			words[0] = f.Name
		}
	}
	return strings.Join(words, " ")
}

func assemble(base, thickness, grade string) string {
	return joinNonEmpty(base, thickness+" мм", grade)
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Stock is the raw-material category of a record.
type Stock int

const (
	StockOther Stock = iota
	StockSheet
	StockTubular
)

func (s Stock) String() string {
	switch s {
	case StockSheet:
		return "sheet"
	case StockTubular:
		return "tubular"
	default:
		return "other"
	}
}

// Category derives the stock category of d: sheet stock carries a
// thickness token, tubular stock has a length.
func (d Descriptor) Category(length float64) Stock {
	if d.Thickness != "" {
		return StockSheet
	}
	if length > 0 {
		return StockTubular
	}
	return StockOther
}
