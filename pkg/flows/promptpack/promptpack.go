// Package promptpack deterministically packs context sections into a prompt
// under a token budget. The ask and quote flows use it to fold business
// context (catalog descriptions, FAQ entries, prior answers) into the system
// prompt without ever blowing the model's context window.
package promptpack

import (
	"sort"
)

// Section is one retrievable chunk of prompt context. Identity for ordering
// and dedup is (Source, ID).
type Section struct {
	Source string
	ID     string
	Text   string
}

// Pin marks a section that must be considered before everything else.
type Pin struct {
	Source string
	ID     string
}

// BuildLog summarizes a packing decision.
type BuildLog struct {
	IncludedTokens int
	Dropped        int // sections excluded by the budget; duplicates are not counted
}

// TokenEstimator estimates token usage of text content.
type TokenEstimator func(text string) int

// Pack selects sections under a token budget, pins first, deterministically.
type Pack struct {
	estimate  TokenEstimator
	maxTokens int
}

// Option configures a Pack.
type Option func(*Pack)

// WithTokenEstimator sets the token estimator. Defaults to rune length.
func WithTokenEstimator(est TokenEstimator) Option {
	return func(p *Pack) {
		if est != nil {
			p.estimate = est
		}
	}
}

// WithMaxTokens sets the token budget. Defaults to effectively unlimited.
func WithMaxTokens(n int) Option {
	return func(p *Pack) {
		if n > 0 {
			p.maxTokens = n
		}
	}
}

// New creates a Pack.
func New(opts ...Option) *Pack {
	p := &Pack{
		estimate:  func(s string) int { return len([]rune(s)) },
		maxTokens: 1_000_000_000,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Build returns the packed selection. Sections are deduplicated by
// (Source, ID); pinned sections are taken first, then the rest, each group
// in (Source, ID) order, and nothing is taken past the budget. The same
// inputs always produce the same selection.
func (p *Pack) Build(sections []Section, pins []Pin) ([]Section, BuildLog) {
	type key struct{ s, id string }
	seen := make(map[key]Section)
	for _, s := range sections {
		k := key{s.Source, s.ID}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = s
	}
	pinned := make(map[key]bool, len(pins))
	for _, pn := range pins {
		pinned[key{pn.Source, pn.ID}] = true
	}

	first := make([]Section, 0, len(pins))
	rest := make([]Section, 0, len(seen))
	for k, s := range seen {
		if pinned[k] {
			first = append(first, s)
		} else {
			rest = append(rest, s)
		}
	}
	less := func(a, b Section) bool {
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.ID < b.ID
	}
	sort.Slice(first, func(i, j int) bool { return less(first[i], first[j]) })
	sort.Slice(rest, func(i, j int) bool { return less(rest[i], rest[j]) })

	budget := p.maxTokens
	var log BuildLog
	out := make([]Section, 0, len(seen))
	take := func(s Section) {
		cost := p.estimate(s.Text)
		if cost > budget {
			log.Dropped++
			return
		}
		budget -= cost
		log.IncludedTokens += cost
		out = append(out, s)
	}
	for _, s := range first {
		take(s)
	}
	for _, s := range rest {
		take(s)
	}
	return out, log
}
