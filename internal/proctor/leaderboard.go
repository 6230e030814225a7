package proctor

import (
	"math"
	"sort"
	"time"
)

// Standing is one completed session's position input for ranking.
type Standing struct {
	CandidateID     string  `json:"candidate_id"`
	SessionID       string  `json:"session_id"`
	BaseScore       float64 `json:"base_score"`
	Penalty         float64 `json:"penalty"`
	FinalScore      float64 `json:"final_score"`
	Rating          string  `json:"rating"`
	Flagged         bool    `json:"flagged"`
	TotalViolations int     `json:"total_violations"`
}

// NewStanding scores a completed session for ranking.
func NewStanding(candidateID, sessionID string, c MalpracticeCounters, in ScoreInputs) Standing {
	penalty := Penalty(c)
	final := FinalScore(in.BaseScore, penalty)
	return Standing{
		CandidateID:     candidateID,
		SessionID:       sessionID,
		BaseScore:       in.BaseScore,
		Penalty:         penalty,
		FinalScore:      final,
		Rating:          Rating(final, len(c.Log), in.Confidence, in.ApplicationScore),
		Flagged:         Flagged(c),
		TotalViolations: len(c.Log),
	}
}

// LeaderboardEntry is a ranked standing. TieBreakKey is the standing's
// position in the input, which decides the order of equal scores.
type LeaderboardEntry struct {
	Standing
	Rank        int    `json:"rank"`
	TieBreakKey int    `json:"tie_break_key"`
	Medal       string `json:"medal,omitempty"`
}

// Leaderboard is the ranked view of a posting.
type Leaderboard struct {
	PostingID       string             `json:"posting_id"`
	TotalCandidates int                `json:"total_candidates"`
	TopN            int                `json:"top_n"`
	Entries         []LeaderboardEntry `json:"entries"`
	AllEntries      []LeaderboardEntry `json:"all_entries"`
	GeneratedAt     time.Time          `json:"generated_at"`
}

var medals = [...]string{"gold", "silver", "bronze"}

// Rank orders standings by final score, highest first. Equal scores keep
// their input order.
func Rank(standings []Standing) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, len(standings))
	for i, s := range standings {
		entries[i] = LeaderboardEntry{Standing: s, TieBreakKey: i}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].FinalScore > entries[j].FinalScore
	})
	for i := range entries {
		entries[i].Rank = i + 1
		if i < len(medals) {
			entries[i].Medal = medals[i]
		}
	}
	return entries
}

// BuildLeaderboard ranks standings and truncates the head to topN while
// keeping the full ranking. A non-positive topN keeps every entry.
func BuildLeaderboard(postingID string, standings []Standing, topN int, at time.Time) Leaderboard {
	all := Rank(standings)
	head := all
	if topN > 0 && topN < len(all) {
		head = all[:topN]
	}
	top := make([]LeaderboardEntry, len(head))
	copy(top, head)

	return Leaderboard{
		PostingID:       postingID,
		TotalCandidates: len(all),
		TopN:            topN,
		Entries:         top,
		AllEntries:      all,
		GeneratedAt:     at,
	}
}

// Percentile is the share of scores strictly below score, rounded to a
// whole percent.
func Percentile(score float64, scores []float64) int {
	if len(scores) == 0 {
		return 0
	}
	return int(math.Round(percentileRaw(score, scores)))
}

func percentileRaw(score float64, scores []float64) float64 {
	lower := 0
	for _, s := range scores {
		if s < score {
			lower++
		}
	}
	return float64(lower) / float64(len(scores)) * 100
}

// Performance bands for peer comparison.
const (
	PerformanceExcellent    = "Excellent"
	PerformanceAboveAverage = "Above Average"
	PerformanceAverage      = "Average"
	PerformanceBelowAverage = "Below Average"
	PerformanceNeedsWork    = "Needs Improvement"
)

// PeerComparison places one candidate's score among the posting's scores.
type PeerComparison struct {
	CandidateScore  float64 `json:"candidate_score"`
	Percentile      int     `json:"percentile"`
	AverageScore    float64 `json:"average_score"`
	Median          float64 `json:"median"`
	TotalCandidates int     `json:"total_candidates"`
	Rank            int     `json:"rank"`
	Performance     string  `json:"performance"`
}

// Compare computes the peer comparison of score within scores. scores is
// expected to include the candidate's own score.
func Compare(score float64, scores []float64) PeerComparison {
	out := PeerComparison{CandidateScore: score, TotalCandidates: len(scores), Performance: PerformanceNeedsWork}
	if len(scores) == 0 {
		return out
	}

	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)

	var sum float64
	lower := 0
	for _, s := range sorted {
		sum += s
		if s < score {
			lower++
		}
	}

	raw := percentileRaw(score, sorted)
	out.Percentile = int(math.Round(raw))
	out.AverageScore = math.Round(sum/float64(len(sorted))*10) / 10
	out.Median = sorted[len(sorted)/2]
	out.Rank = len(sorted) - lower
	switch {
	case raw >= 80:
		out.Performance = PerformanceExcellent
	case raw >= 60:
		out.Performance = PerformanceAboveAverage
	case raw >= 40:
		out.Performance = PerformanceAverage
	case raw >= 20:
		out.Performance = PerformanceBelowAverage
	}
	return out
}
