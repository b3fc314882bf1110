package domain

// MaxEngagement is both the ceiling of the limit curve and the engagement
// reported before any post was viewed.
const MaxEngagement = 200.0

// Score is derived from a snapshot and decides game over.
type Score struct {
	Engagement float64 `json:"engagement"`
	Limit      float64 `json:"limit"`
	Lives      string  `json:"lifes"`
	GameOver   bool    `json:"gameOver"`
}

// GetLimit returns the engagement the users must keep after the given number
// of tasks. It starts at 0, reaches 100 at 20 tasks and tends to 200.
func GetLimit(tasks int) float64 {
	if tasks < 0 {
		tasks = 0
	}
	return MaxEngagement - 4000/float64(tasks+20)
}

// GetAvgEngagement returns the average engagement caused by the algorithm.
// Without views the game has just started, so engagement is at maximum.
func GetAvgEngagement(views, comments, reactions int) float64 {
	if views == 0 {
		return MaxEngagement
	}
	return 100 * float64(reactions+comments) / float64(views)
}

// Lives transcribes the reserve between achieved and required engagement.
func Lives(engagement, limit float64) string {
	maxDiff := MaxEngagement - limit
	if maxDiff <= 0 {
		return "💀"
	}
	percentage := (engagement - limit) / maxDiff * 100

	switch {
	case percentage > 40:
		return "♡♡♡♡♡"
	case percentage > 20:
		return "♡♡♡♡"
	case percentage > 15:
		return "♡♡♡"
	case percentage > 5:
		return "♡♡"
	case percentage > 0:
		return "♡"
	}
	return "💀"
}

// ComputeScore derives the score of a snapshot.
func ComputeScore(g *Game) Score {
	if g == nil {
		return Score{Engagement: MaxEngagement, Lives: Lives(MaxEngagement, 0)}
	}
	engagement := GetAvgEngagement(len(g.Views), len(g.Comments), len(g.Reactions))
	limit := GetLimit(len(g.Tasks))
	return Score{
		Engagement: engagement,
		Limit:      limit,
		Lives:      Lives(engagement, limit),
		GameOver:   engagement < limit,
	}
}
