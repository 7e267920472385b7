// Package quality derives deterministic 0-100 quality scores from a
// paper's own text. Each sub-score reads only textual signals, so
// re-scoring the same chunk set always reproduces the same result.
package quality

import (
	"math"
	"regexp"
	"strings"

	"github.com/hyperjump/ronbun/internal/models"
)

// Weights for the overall score. They sum to 1.0.
const (
	weightMethodology = 0.30
	weightData        = 0.25
	weightCitation    = 0.25
	weightClarity     = 0.20
)

var methodologyTerms = []string{
	"method",
	"methodology",
	"approach",
	"experiment",
	"experimental",
	"procedure",
	"protocol",
	"participants",
	"baseline",
	"evaluation",
	"dataset",
	"sampling",
	"apparatus",
	"we conducted",
	"we propose",
	"we evaluate",
}

var statisticalTerms = []string{
	"mean",
	"median",
	"deviation",
	"variance",
	"correlation",
	"regression",
	"anova",
	"p-value",
	"significance",
	"significant",
	"confidence",
	"interval",
	"distribution",
	"probability",
}

var (
	methodsHeading = regexp.MustCompile(`(?im)^\s*(?:\d+\.?\s*)?(?:materials and methods|methodology|methods|experimental setup|study design)\b`)
	tableFigureRef = regexp.MustCompile(`(?i)\b(?:table|figure|fig\.)\s*\d+`)
	bracketRef     = regexp.MustCompile(`\[\d+(?:\s*[,;-]\s*\d+)*\]`)
	authorYearRef  = regexp.MustCompile(`\([A-Z][A-Za-z]+(?:\s+(?:et al\.?|and\s+[A-Z][A-Za-z]+))?,?\s+\d{4}\)`)
	referencesWord = regexp.MustCompile(`(?i)\breferences\b`)
	sentenceSplit  = regexp.MustCompile(`[.!?]+(?:\s+|$)`)
)

// Scorer computes the four quality sub-scores and their weighted
// overall score for one paper.
type Scorer struct{}

// NewScorer creates a quality scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score evaluates a paper's full chunk sequence. Papers with no text
// score zero on every dimension.
func (s *Scorer) Score(chunks []*models.Chunk) models.QualityScore {
	var b strings.Builder
	for i, ch := range chunks {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(ch.Content)
	}
	text := b.String()
	words := strings.Fields(text)
	if len(words) == 0 {
		return models.QualityScore{}
	}

	q := models.QualityScore{
		Methodology: scoreMethodology(text),
		Data:        scoreData(text, words),
		Citation:    scoreCitation(text, words),
		Clarity:     scoreClarity(text, words),
	}
	q.Overall = Overall(q.Methodology, q.Data, q.Citation, q.Clarity)
	return q
}

// Overall combines the four sub-scores with the fixed weights.
func Overall(methodology, data, citation, clarity int) int {
	return int(math.Round(
		weightMethodology*float64(methodology) +
			weightData*float64(data) +
			weightCitation*float64(citation) +
			weightClarity*float64(clarity)))
}

// scoreMethodology rewards methods-section vocabulary and an explicit
// methods heading.
func scoreMethodology(text string) int {
	lower := strings.ToLower(text)

	score := 0.0
	for _, term := range methodologyTerms {
		if strings.Contains(lower, term) {
			score += 10
		}
	}
	score = math.Min(score, 70)

	if methodsHeading.MatchString(text) {
		score += 30
	}

	return clampScore(score)
}

// scoreData rewards numeric density, statistical vocabulary, and
// references to tables and figures.
func scoreData(text string, words []string) int {
	numeric := 0
	for _, w := range words {
		if strings.ContainsAny(w, "0123456789") {
			numeric++
		}
	}
	density := float64(numeric) / float64(len(words))
	score := math.Min(density*800, 50)

	lower := strings.ToLower(text)
	statBonus := 0.0
	for _, term := range statisticalTerms {
		if strings.Contains(lower, term) {
			statBonus += 6
		}
	}
	score += math.Min(statBonus, 30)

	refs := len(tableFigureRef.FindAllString(text, -1))
	score += math.Min(float64(refs)*4, 20)

	return clampScore(score)
}

// scoreCitation rewards citation-marker density and a references
// section.
func scoreCitation(text string, words []string) int {
	markers := len(bracketRef.FindAllString(text, -1)) +
		len(authorYearRef.FindAllString(text, -1))

	perThousand := float64(markers) / float64(len(words)) * 1000
	score := math.Min(perThousand*6, 80)

	if referencesWord.MatchString(text) {
		score += 20
	}

	return clampScore(score)
}

// scoreClarity blends average sentence length against a readable band
// with vocabulary diversity over the opening of the paper.
func scoreClarity(text string, words []string) int {
	sentences := sentenceSplit.Split(text, -1)
	count := 0
	for _, s := range sentences {
		if strings.TrimSpace(s) != "" {
			count++
		}
	}
	if count == 0 {
		count = 1
	}
	avgLen := float64(len(words)) / float64(count)

	lengthScore := 100.0
	switch {
	case avgLen < 12:
		lengthScore -= (12 - avgLen) * 4
	case avgLen > 28:
		lengthScore -= (avgLen - 28) * 4
	}
	lengthScore = math.Max(lengthScore, 0)

	// Type-token ratio over a fixed prefix so long papers are not
	// penalized for natural vocabulary reuse.
	prefix := words
	if len(prefix) > 1000 {
		prefix = prefix[:1000]
	}
	distinct := make(map[string]bool, len(prefix))
	for _, w := range prefix {
		distinct[strings.ToLower(strings.Trim(w, ".,;:()[]"))] = true
	}
	ttr := float64(len(distinct)) / float64(len(prefix))
	diversityScore := math.Min(ttr*200, 100)

	return clampScore(0.6*lengthScore + 0.4*diversityScore)
}

func clampScore(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(math.Round(v))
}
