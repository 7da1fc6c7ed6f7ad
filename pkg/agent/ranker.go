package agent

import "sort"

// HypothesisRank is one hypothesis scored against the results recorded
// against it so far, plus the evidence rows that back the score.
type HypothesisRank struct {
	Hypothesis         Hypothesis
	Score              int
	SupportCount       int
	ContradictionCount int
	Rows               []ResultRow
}

// RankHypotheses scores every tracked hypothesis from the evidence recorded
// against it: a fail supports the hypothesis (+2, one more support), a pass
// contradicts it (-2, one more contradiction). Ties break on support count,
// then fewest contradictions, then hypothesis id for determinism.
func RankHypotheses(state *State) []HypothesisRank {
	ranks := make(map[string]*HypothesisRank, len(state.Hypotheses))
	order := make([]string, 0, len(state.Hypotheses))

	for _, hypothesis := range state.Hypotheses {
		ranks[hypothesis.ID] = &HypothesisRank{Hypothesis: hypothesis}
		order = append(order, hypothesis.ID)
	}

	for _, row := range state.ResultsTable {
		rank, ok := ranks[row.HypothesisID]
		if !ok {
			continue
		}
		rank.Rows = append(rank.Rows, row)

		switch row.Result {
		case ResultFail:
			rank.Score += 2
			rank.SupportCount++
		case ResultPass:
			rank.Score -= 2
			rank.ContradictionCount++
		}
	}

	ordered := make([]HypothesisRank, 0, len(order))
	for _, id := range order {
		ordered = append(ordered, *ranks[id])
	}

	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.SupportCount != b.SupportCount {
			return a.SupportCount > b.SupportCount
		}
		if a.ContradictionCount != b.ContradictionCount {
			return a.ContradictionCount < b.ContradictionCount
		}
		return a.Hypothesis.ID < b.Hypothesis.ID
	})

	return ordered
}
