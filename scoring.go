package main

import "strconv"

const (
	audienceAward   = 100
	contestantPurse = 300
)

// roundResult is what scoring hands back: score deltas keyed by
// connection id plus the per-contestant results payload.
type roundResult struct {
	awards      map[string]int
	contestants map[string]ContestantResult
}

// scoreRound is applied exactly once, when a round reaches its results
// phase. Audience members who picked the correct option earn 100
// points. Contestants are ranked by votes: with no votes at all nobody
// gets a bonus, otherwise everyone tied at the top splits 300 points by
// integer division. The remainder of an uneven split is dropped, not
// redistributed.
func scoreRound(r *Round, players map[string]*Player) roundResult {
	result := roundResult{
		awards:      make(map[string]int),
		contestants: make(map[string]ContestantResult, len(r.contestants)),
	}

	correct := strconv.Itoa(r.question.CorrectAnswerIndex)
	for sid := range r.audience {
		if r.snapshot[sid] == correct {
			result.awards[sid] += audienceAward
		}
	}

	tally := make(map[string]int, len(r.contestants))
	for _, csid := range r.contestants {
		tally[csid] = 0
	}
	for _, target := range r.votes {
		tally[target]++
	}

	maxVotes := 0
	for _, votes := range tally {
		if votes > maxVotes {
			maxVotes = votes
		}
	}

	if maxVotes > 0 {
		leaders := make([]string, 0, len(r.contestants))
		for _, csid := range r.contestants {
			if tally[csid] == maxVotes {
				leaders = append(leaders, csid)
			}
		}

		share := contestantPurse / len(leaders)
		for _, csid := range leaders {
			result.awards[csid] += share
		}
	}

	for _, csid := range r.contestants {
		username := ""
		if p, ok := players[csid]; ok {
			username = p.Username
		}
		result.contestants[csid] = ContestantResult{
			Username: username,
			Answer:   r.snapshot[csid],
			Votes:    tally[csid],
		}
	}

	return result
}
