package pipeline

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/scribeworks/keyword-cli/internal/model"
)

// accentFolder strips combining marks after NFKD decomposition, so
// "café" and "cafe" normalize to the same text.
var accentFolder = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeText canonicalizes a keyword: lowercase, accents folded,
// punctuation stripped, whitespace collapsed. Two keywords with equal
// normalized text are duplicates within a project.
func NormalizeText(s string) string {
	folded, _, err := transform.String(accentFolder, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'':
			// drop apostrophes entirely ("women's" -> "womens")
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// irregularLemmas maps common irregular plurals to their singular form.
var irregularLemmas = map[string]string{
	"men":      "man",
	"women":    "woman",
	"children": "child",
	"people":   "person",
	"feet":     "foot",
	"teeth":    "tooth",
	"mice":     "mouse",
	"geese":    "goose",
}

// lemmaWord reduces one normalized word to a noun lemma using suffix rules.
func lemmaWord(w string) string {
	if lemma, ok := irregularLemmas[w]; ok {
		return lemma
	}
	n := len(w)
	switch {
	case n > 4 && strings.HasSuffix(w, "ies"):
		return w[:n-3] + "y"
	case n > 4 && (strings.HasSuffix(w, "ches") || strings.HasSuffix(w, "shes") ||
		strings.HasSuffix(w, "sses") || strings.HasSuffix(w, "xes") || strings.HasSuffix(w, "zes")):
		return w[:n-2]
	case n > 3 && strings.HasSuffix(w, "s") &&
		!strings.HasSuffix(w, "ss") && !strings.HasSuffix(w, "us") && !strings.HasSuffix(w, "is"):
		return w[:n-1]
	}
	return w
}

// Lemma computes the normalized, word-by-word lemmatized form used for
// cross-keyword grouping by Clustering.
func Lemma(s string) string {
	words := strings.Fields(NormalizeText(s))
	for i, w := range words {
		words[i] = lemmaWord(w)
	}
	return strings.Join(words, " ")
}

// LemmaTokens returns the lemma token set of a keyword.
func LemmaTokens(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, w := range strings.Fields(Lemma(s)) {
		tokens[w] = struct{}{}
	}
	return tokens
}

// Normalizer is the Normalization stage: it canonicalizes keyword text and
// computes each keyword's lemma, marking empty results invalid.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

func (n *Normalizer) Stage() model.Stage {
	return model.StageNormalization
}

func (n *Normalizer) Run(_ context.Context, pc *Context) (Output, error) {
	keywords := make([]model.Keyword, len(pc.Keywords))
	copy(keywords, pc.Keywords)

	for i := range keywords {
		keywords[i].Normalized = NormalizeText(keywords[i].Text)
		keywords[i].Lemma = Lemma(keywords[i].Text)
		if keywords[i].Normalized == "" {
			keywords[i].Invalid = true
		}
	}
	return Normalized{Keywords: keywords}, nil
}
