package domain

// TaskType describes what the player has to decide for a managed user.
type TaskType string

const (
	// TaskDistributePost chooses who will see the post of a managed user.
	TaskDistributePost TaskType = "distributePost"
	// TaskShowPost chooses which post will be shown to a managed user.
	TaskShowPost TaskType = "showPost"
	// TaskShowAd chooses which ad will be shown to a managed user.
	TaskShowAd TaskType = "showAd"
)

// Task is a unit of required player work. Beside tracking the current work
// it marks how far the game has progressed.
type Task struct {
	UUID      string   `json:"uuid"`
	User      string   `json:"user"`
	Post      string   `json:"post"`
	Completed bool     `json:"completed"`
	Type      TaskType `json:"type"`
	Time      int64    `json:"time"`
}

func (t *Task) IsCompleted() bool {
	return t != nil && t.Completed
}
