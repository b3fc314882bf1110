package domain

// QuestType identifies what the quest object refers to.
type QuestType string

// QuestTargetPost asks the player to direct a post to other users. Its
// ObjectUUID is a post uuid.
const QuestTargetPost QuestType = "targetPost"

// Quest is a player-visible objective.
type Quest struct {
	UUID       string    `json:"uuid"`
	Type       QuestType `json:"type"`
	ObjectUUID string    `json:"objectUUID"`
	Progress   int       `json:"progress"`
	Goal       int       `json:"goal"`
	Report     string    `json:"report"`
	Ended      bool      `json:"ended,omitempty"`
}

// Remaining returns how many required actions are still missing.
func (q *Quest) Remaining() int {
	if q == nil {
		return 0
	}
	if rest := q.Goal - q.Progress; rest > 0 {
		return rest
	}
	return 0
}

func (q *Quest) Clone() *Quest {
	if q == nil {
		return nil
	}
	cp := *q
	return &cp
}

// QuestResults is produced when a quest ends.
type QuestResults struct {
	Quest     Quest `json:"quest"`
	GameScore Score `json:"gameScore"`
}
