// Package transcript corrects speech-to-text output against the proper
// nouns a session knows about: the company name, the role title, and any
// skill names drawn from the résumé. Whisper-class models reliably mangle
// these ("Acme" → "ack me", "Kubernetes" → "cuber netties"), and they are
// exactly the words an interview answer has to get right.
//
// Matching is two-stage per candidate window:
//
//  1. Double Metaphone codes of the window and the entity are intersected;
//     any shared code makes the entity a phonetic candidate, accepted when
//     its Jaro-Winkler similarity clears the phonetic threshold (0.70).
//  2. Without phonetic overlap, a pure Jaro-Winkler pass applies with a
//     stricter fuzzy threshold (0.85), catching spelling-level drift the
//     metaphone codes miss.
//
// Multi-word entities are matched against n-gram windows of the input, the
// longest window winning, so "side reliability engineer" collapses to
// "Site Reliability Engineer" in one correction.
package transcript

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option configures a Corrector.
type Option func(*Corrector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for an entity
// that shares a metaphone code with the input. Default 0.70.
func WithPhoneticThreshold(t float64) Option {
	return func(c *Corrector) { c.phoneticThreshold = t }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for an entity with
// no phonetic overlap. Default 0.85.
func WithFuzzyThreshold(t float64) Option {
	return func(c *Corrector) { c.fuzzyThreshold = t }
}

// Correction records one applied replacement.
type Correction struct {
	Original   string
	Corrected  string
	Confidence float64
}

// Corrector rewrites transcribed text so that session entities appear in
// their canonical spelling. Read-only after construction and safe for
// concurrent use.
type Corrector struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a Corrector with the supplied options applied.
func New(opts ...Option) *Corrector {
	c := &Corrector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Correct returns text with recognised entity mangles replaced by their
// canonical forms. Text without matches comes back unchanged.
func (c *Corrector) Correct(text string, entities []string) string {
	corrected, _ := c.CorrectDetailed(text, entities)
	return corrected
}

// CorrectDetailed is Correct plus the list of replacements it made.
func (c *Corrector) CorrectDetailed(text string, entities []string) (string, []Correction) {
	ents := prepare(entities)
	if len(ents) == 0 {
		return text, nil
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text, nil
	}

	maxWindow := 1
	for _, e := range ents {
		if len(e.tokens) > maxWindow {
			maxWindow = len(e.tokens)
		}
	}

	var (
		out         []string
		corrections []Correction
	)

	i := 0
	for i < len(tokens) {
		n := maxWindow
		if i+n > len(tokens) {
			n = len(tokens) - i
		}

		matched := false
		// Longest window first, so a multi-word entity beats a partial
		// single-word match on its first token.
		for ; n >= 1; n-- {
			window := strings.Join(tokens[i:i+n], " ")
			core, prefix, suffix := trimPunct(window)
			entity, score, ok := c.match(core, ents)
			if !ok {
				continue
			}
			out = append(out, strings.Fields(prefix+entity+suffix)...)
			corrections = append(corrections, Correction{
				Original:   core,
				Corrected:  entity,
				Confidence: score,
			})
			i += n
			matched = true
			break
		}
		if !matched {
			out = append(out, tokens[i])
			i++
		}
	}

	return strings.Join(out, " "), corrections
}

// match finds the best entity for the window, or reports no match.
func (c *Corrector) match(window string, ents []entity) (string, float64, bool) {
	windowLower := strings.ToLower(window)
	windowTokens := strings.Fields(windowLower)
	if len(windowTokens) == 0 {
		return "", 0, false
	}
	windowCodes := codesFor(windowTokens)

	var (
		bestEntity   string
		bestScore    float64
		bestPhonetic bool
	)

	for _, e := range ents {
		// Identity: already spelled right, nothing to do.
		if windowLower == e.lower {
			return "", 0, false
		}

		phonetic := overlap(windowCodes, e.codes)
		score := bestSimilarity(windowTokens, e.tokens, windowLower, e.lower)

		switch {
		case phonetic && score >= c.phoneticThreshold:
			if !bestPhonetic || score > bestScore {
				bestEntity, bestScore, bestPhonetic = e.name, score, true
			}
		case !phonetic && !bestPhonetic && score >= c.fuzzyThreshold && score > bestScore:
			bestEntity, bestScore = e.name, score
		}
	}

	if bestEntity == "" {
		return "", 0, false
	}
	return bestEntity, bestScore, true
}

// entity is a canonical name with its lowercase form, tokens, and metaphone
// codes precomputed once per Correct call.
type entity struct {
	name   string
	lower  string
	tokens []string
	codes  map[string]struct{}
}

func prepare(names []string) []entity {
	ents := make([]entity, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		lower := strings.ToLower(name)
		tokens := strings.Fields(lower)
		ents = append(ents, entity{
			name:   name,
			lower:  lower,
			tokens: tokens,
			codes:  codesFor(tokens),
		})
	}
	return ents
}

// codesFor unions the Double Metaphone codes of all tokens. Empty codes
// (too short, no consonants) are skipped.
func codesFor(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func overlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestSimilarity takes the highest Jaro-Winkler score across three views:
// the full strings, the space-stripped strings (one spoken word split into
// two, or two merged into one), and the best token pair.
func bestSimilarity(aTokens, bTokens []string, aFull, bFull string) float64 {
	score := matchr.JaroWinkler(aFull, bFull, false)

	if len(aTokens) > 1 || len(bTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(aTokens, ""), strings.Join(bTokens, ""), false); s > score {
			score = s
		}
	}
	for _, at := range aTokens {
		for _, bt := range bTokens {
			if s := matchr.JaroWinkler(at, bt, false); s > score {
				score = s
			}
		}
	}
	return score
}

// trimPunct splits leading and trailing punctuation off a window so "acme?"
// matches "Acme" and the question mark survives the replacement.
func trimPunct(s string) (core, prefix, suffix string) {
	const punct = ".,!?;:\"'()"
	trimmed := strings.TrimLeft(s, punct)
	prefix = s[:len(s)-len(trimmed)]
	core = strings.TrimRight(trimmed, punct)
	suffix = trimmed[len(core):]
	return core, prefix, suffix
}
