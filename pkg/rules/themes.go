package rules

import (
	"strings"

	"github.com/orneryd/bowline/pkg/similarity"
	"github.com/orneryd/bowline/pkg/vocab"
)

// Theme groups keyword stems around one environmental topic. Two items
// from an allowed type pair that both match a theme produce a candidate
// with the theme's default strength.
//
// Keywords are lowercase stems matched by substring against the normalized
// label, so "fish" matches "fishing" and "overfishing", and "regulat"
// matches both "regulate" and "regulation".
type Theme struct {
	Name     string
	Keywords []string
	Strength float64
}

// defaultThemes is the curated theme table for marine environmental risk
// vocabularies.
var defaultThemes = []Theme{
	{Name: "fishing", Keywords: []string{"fish", "trawl", "catch", "harvest", "bycatch"}, Strength: 0.5},
	{Name: "pollution", Keywords: []string{"pollut", "contamin", "toxic", "chemical", "waste", "discharge", "spill", "oil"}, Strength: 0.5},
	{Name: "habitat", Keywords: []string{"habitat", "seabed", "reef", "seagrass", "wetland", "mangrove"}, Strength: 0.5},
	{Name: "climate", Keywords: []string{"climat", "warming", "temperature", "acidif", "carbon", "co2"}, Strength: 0.5},
	{Name: "nutrients", Keywords: []string{"nutrient", "eutroph", "algal", "nitrogen", "phosphor", "runoff"}, Strength: 0.5},
	{Name: "shipping", Keywords: []string{"ship", "vessel", "ballast", "anchor", "dredg", "port"}, Strength: 0.5},
	{Name: "noise", Keywords: []string{"noise", "sonar", "acoustic", "seismic"}, Strength: 0.5},
	{Name: "aquaculture", Keywords: []string{"aquacultur", "farm", "cage", "feed"}, Strength: 0.45},
	{Name: "tourism", Keywords: []string{"touris", "recreat", "visitor", "beach"}, Strength: 0.45},
	{Name: "species", Keywords: []string{"species", "invasive", "biodivers", "stock", "population"}, Strength: 0.45},
}

// DefaultThemes returns a copy of the built-in theme table.
func DefaultThemes() []Theme {
	out := make([]Theme, len(defaultThemes))
	copy(out, defaultThemes)
	return out
}

// causalConnectors are stems that signal causal wording in a source label.
var causalConnectors = []string{
	"caus", "lead", "result", "driv", "increas", "induc", "generat", "due",
}

// outcomeWords are stems that signal an outcome or damage state in a
// target label.
var outcomeWords = []string{
	"loss", "decline", "degrad", "collaps", "mortal", "damag", "reduc",
	"deplet", "destruct", "disturb", "impact", "effect",
}

// preventiveKeywords classify a control as acting on the cause side of the
// bowtie. Stems, matched by substring (see Theme).
var preventiveKeywords = []string{
	"prevent", "reduc", "minimi", "control", "regulat", "monitor",
	"restrict", "limit", "manag",
}

// protectiveKeywords classify a control as acting on the consequence side.
var protectiveKeywords = []string{
	"mitigat", "protect", "respon", "recover", "restor", "remed",
	"repair", "clean", "treat", "emergenc",
}

// normalizeLabel lowercases a label and collapses it to space-separated
// tokens so substring keyword matching is insensitive to punctuation.
func normalizeLabel(name string) string {
	return strings.Join(similarity.Tokenize(name), " ")
}

// matchesAny reports whether the normalized label contains any of the
// keyword stems, and returns how many distinct stems matched.
func matchesAny(label string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(label, kw) {
			n++
		}
	}
	return n
}

// ClassifyControl decides which side of the bowtie a control acts on by
// checking its name against the two fixed keyword lists.
//
// A control matching neither list is excluded from automatic suggestion
// entirely (left to manual selection); ok is false in that case. When a
// name matches both lists the side with more keyword matches wins, with
// the preventive (cause) side taking a tie.
func ClassifyControl(item vocab.Item) (ControlCategory, bool) {
	label := normalizeLabel(item.Name)
	prev := matchesAny(label, preventiveKeywords)
	prot := matchesAny(label, protectiveKeywords)

	switch {
	case prev == 0 && prot == 0:
		return CategoryNone, false
	case prot > prev:
		return CategoryProtective, true
	default:
		return CategoryPreventive, true
	}
}

// matchThemes returns the themes whose keywords the label matches.
func matchThemes(label string, themes []Theme) []Theme {
	var matched []Theme
	for _, th := range themes {
		if matchesAny(label, th.Keywords) > 0 {
			matched = append(matched, th)
		}
	}
	return matched
}

// hasCausalPattern reports whether the source label carries causal
// connector wording and the target label carries outcome wording. Labels
// must be normalized.
func hasCausalPattern(fromLabel, toLabel string) bool {
	return matchesAny(fromLabel, causalConnectors) > 0 &&
		matchesAny(toLabel, outcomeWords) > 0
}
