package launcher

import (
	"sort"
	"strings"
)

// candidate represents a host ready for fuzzy searching and display.
type candidate struct {
	Env        *Environment
	Host       HostEntry
	SearchText string
}

// buildCandidates constructs the searchable data for one environment's hosts.
func buildCandidates(env *Environment) []candidate {
	if env == nil {
		return nil
	}
	cands := make([]candidate, 0, len(env.Hosts))
	for _, h := range env.Hosts {
		// Search text: alias + target token (lowercased once, up front).
		searchText := strings.ToLower(h.Display + " " + h.Target)
		cands = append(cands, candidate{
			Env:        env,
			Host:       h,
			SearchText: searchText,
		})
	}
	return cands
}

// rankMatches filters and sorts candidates by fuzzy score against query.
//
// Query semantics (simple, fzf-like tokenization):
// - Split query on whitespace into tokens.
// - All tokens must match (AND).
// - Score is the sum of token scores (higher is better).
//
// An empty query preserves file order, matching how the host list reads in
// the config.
func rankMatches(cands []candidate, query string) []candidate {
	q := strings.TrimSpace(query)
	tokens := strings.Fields(q)
	if len(tokens) == 0 {
		out := make([]candidate, len(cands))
		copy(out, cands)
		return out
	}

	type scored struct {
		c candidate
		s int
	}

	for i := range tokens {
		tokens[i] = strings.ToLower(tokens[i])
	}

	scoreds := make([]scored, 0, len(cands))
	for _, c := range cands {
		total := 0
		okAll := true
		for _, t := range tokens {
			if s, ok := fuzzyScore(t, c.SearchText); ok {
				total += s
			} else {
				okAll = false
				break
			}
		}
		if okAll {
			scoreds = append(scoreds, scored{c: c, s: total})
		}
	}

	// Sort by score (desc), then by alias (asc) for stability.
	sort.SliceStable(scoreds, func(i, j int) bool {
		if scoreds[i].s != scoreds[j].s {
			return scoreds[i].s > scoreds[j].s
		}
		return scoreds[i].c.Host.Display < scoreds[j].c.Host.Display
	})

	out := make([]candidate, len(scoreds))
	for i := range scoreds {
		out[i] = scoreds[i].c
	}
	return out
}

// fuzzyScore performs a simple subsequence fuzzy match.
// Returns (score, true) if query is a subsequence of text; otherwise (0, false).
// The score rewards consecutive matches, word boundaries, and early positions.
func fuzzyScore(query, text string) (int, bool) {
	if query == "" {
		return 0, true
	}
	rt := []rune(text)
	rq := []rune(query)

	ti := 0
	lastPos := -1
	consecutive := 0
	score := 0
	firstPos := -1

	for _, qch := range rq {
		found := false
		for i := ti; i < len(rt); i++ {
			if rt[i] == qch {
				score += 10
				if firstPos == -1 {
					firstPos = i
				}
				// Consecutive bonus
				if lastPos >= 0 && i == lastPos+1 {
					consecutive++
					score += 5 * consecutive // escalating bonus
				} else {
					consecutive = 0
				}
				// Word boundary bonus
				if i == 0 || !isAlphaNum(rt[i-1]) {
					score += 10
				}
				lastPos = i
				ti = i + 1
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	// Early start bonus
	if firstPos >= 0 {
		if bonus := 20 - firstPos; bonus > 0 {
			score += bonus
		}
	}
	return score, true
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
