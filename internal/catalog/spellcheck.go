// Package catalog provides keyword search over paper metadata.
package catalog

import (
	"sort"
	"strings"
	"sync"
)

// Suggestion represents a spelling suggestion for one query term.
type Suggestion struct {
	Term      string  // The suggested term
	Distance  int     // Edit distance from the original term
	Frequency int     // Document frequency (popularity)
	Score     float64 // Combined score for ranking
}

// SpellChecker suggests query rewrites from the indexed term dictionary.
type SpellChecker struct {
	dictionary     TermDictionary
	maxDistance    int
	minFreq        int
	maxSuggestions int

	// Cached terms for faster lookup
	termsCache []string
	termSet    map[string]struct{}
	cacheMu    sync.RWMutex
	cacheValid bool
}

// SpellCheckerOption is a functional option for configuring SpellChecker.
type SpellCheckerOption func(*SpellChecker)

// WithMaxDistance sets the maximum edit distance for suggestions.
func WithMaxDistance(d int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// WithMinFrequency sets the minimum document frequency for suggestions.
// Terms with lower frequency are ignored (likely rare or noise).
func WithMinFrequency(f int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if f >= 0 {
			s.minFreq = f
		}
	}
}

// WithMaxSuggestions sets the maximum number of suggestions per term.
func WithMaxSuggestions(n int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if n > 0 {
			s.maxSuggestions = n
		}
	}
}

// NewSpellChecker creates a SpellChecker backed by the given dictionary.
func NewSpellChecker(dict TermDictionary, opts ...SpellCheckerOption) *SpellChecker {
	s := &SpellChecker{
		dictionary:     dict,
		maxDistance:    2,
		minFreq:        1,
		maxSuggestions: 5,
		termSet:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RefreshCache updates the internal term cache from the dictionary.
func (s *SpellChecker) RefreshCache() error {
	terms, err := s.dictionary.GetAllTerms()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.termsCache = terms
	s.termSet = make(map[string]struct{}, len(terms))
	for _, t := range terms {
		s.termSet[strings.ToLower(t)] = struct{}{}
	}
	s.cacheValid = true
	return nil
}

// Invalidate marks the term cache stale; the next suggestion request
// refreshes it. Called whenever the underlying index changes.
func (s *SpellChecker) Invalidate() {
	s.cacheMu.Lock()
	s.cacheValid = false
	s.cacheMu.Unlock()
}

func (s *SpellChecker) ensureCache() error {
	s.cacheMu.RLock()
	valid := s.cacheValid
	s.cacheMu.RUnlock()
	if valid {
		return nil
	}
	return s.RefreshCache()
}

func (s *SpellChecker) contains(term string) bool {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	_, ok := s.termSet[strings.ToLower(term)]
	return ok
}

// Suggest returns ranked spelling suggestions for a single term.
func (s *SpellChecker) Suggest(term string) []Suggestion {
	if err := s.ensureCache(); err != nil {
		return nil
	}

	termLower := strings.ToLower(term)
	suggestions := make([]Suggestion, 0)

	s.cacheMu.RLock()
	terms := s.termsCache
	s.cacheMu.RUnlock()

	for _, dictTerm := range terms {
		dictTermLower := strings.ToLower(dictTerm)
		if dictTermLower == termLower {
			continue
		}
		// Length difference beyond maxDistance cannot be within distance
		lenDiff := len(dictTermLower) - len(termLower)
		if lenDiff < 0 {
			lenDiff = -lenDiff
		}
		if lenDiff > s.maxDistance {
			continue
		}

		distance := LevenshteinDistance(termLower, dictTermLower)
		if distance > s.maxDistance {
			continue
		}
		freq, err := s.dictionary.GetTermFrequency(dictTerm)
		if err != nil || freq < s.minFreq {
			continue
		}
		// Lower distance is better, higher frequency is better
		score := (1.0 / float64(distance+1)) * float64(freq)
		suggestions = append(suggestions, Suggestion{
			Term:      dictTerm,
			Distance:  distance,
			Frequency: freq,
			Score:     score,
		})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})
	if len(suggestions) > s.maxSuggestions {
		suggestions = suggestions[:s.maxSuggestions]
	}
	return suggestions
}

// SuggestQueries returns up to n corrected query strings for a query whose
// terms missed the dictionary. The first entry substitutes the best
// suggestion for every misspelled term; the rest are single-term variants
// ranked by suggestion score. Returns nil when every term is known or no
// term has a near neighbor.
func (s *SpellChecker) SuggestQueries(query string, n int) []string {
	if err := s.ensureCache(); err != nil {
		return nil
	}
	terms := tokenizeQuery(query)
	if len(terms) == 0 {
		return nil
	}

	best := make([]string, len(terms))
	copy(best, terms)

	type variant struct {
		query string
		score float64
	}
	var variants []variant
	corrected := false

	for i, term := range terms {
		if s.contains(term) {
			continue
		}
		suggs := s.Suggest(term)
		if len(suggs) == 0 {
			continue
		}
		corrected = true
		best[i] = suggs[0].Term
		for _, sg := range suggs {
			sub := make([]string, len(terms))
			copy(sub, terms)
			sub[i] = sg.Term
			variants = append(variants, variant{query: strings.Join(sub, " "), score: sg.Score})
		}
	}
	if !corrected {
		return nil
	}

	sort.Slice(variants, func(i, j int) bool { return variants[i].score > variants[j].score })

	out := []string{strings.Join(best, " ")}
	for _, v := range variants {
		if len(out) >= n {
			break
		}
		dup := false
		for _, existing := range out {
			if existing == v.query {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v.query)
		}
	}
	return out
}

// tokenizeQuery splits a query into lowercase terms, filtering out empties.
func tokenizeQuery(query string) []string {
	words := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w != "" {
			terms = append(terms, w)
		}
	}
	return terms
}
