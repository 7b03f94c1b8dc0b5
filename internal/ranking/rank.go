package ranking

import (
	"sort"

	"github.com/kalambet/frontdesk/internal/kb"
)

// Weights applied per distinct query token found in an entry.
const (
	questionWeight = 2
	answerWeight   = 1
)

// Ranked is a KB entry with its relevance score for one query.
type Ranked struct {
	kb.Entry
	Score int
}

// Relevant reports whether the entry matched the query at all.
func (r Ranked) Relevant() bool {
	return r.Score > 0
}

// Score returns the relevance of entry for the given distinct query tokens:
// two points for every token present in the question and one for every
// token present in the answer. Duplicate tokens count once.
func Score(query map[string]struct{}, entry kb.Entry) int {
	if len(query) == 0 {
		return 0
	}
	q := tokenSet(entry.Question)
	a := tokenSet(entry.Answer)

	score := 0
	for tok := range query {
		if _, ok := q[tok]; ok {
			score += questionWeight
		}
		if _, ok := a[tok]; ok {
			score += answerWeight
		}
	}
	return score
}

// Rank scores every entry against query and returns them ordered by score,
// highest first. Entries with equal scores keep their KB order.
func Rank(query string, entries []kb.Entry) []Ranked {
	qs := tokenSet(query)

	ranked := make([]Ranked, len(entries))
	for i, e := range entries {
		ranked[i] = Ranked{Entry: e, Score: Score(qs, e)}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// QueryTokens returns the distinct tokens of a query for use with Score.
func QueryTokens(query string) map[string]struct{} {
	return tokenSet(query)
}
