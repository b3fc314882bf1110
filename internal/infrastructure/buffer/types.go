package buffer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	// EntityGame items carry a whole snapshot; Key is the slot.
	EntityGame = "game"
	// EntityQuestResult items carry ended quest results; Key is the game uuid.
	EntityQuestResult = "quest_result"

	OperationSave    = "save"
	OperationArchive = "archive"
)

// Item is a write that should be retried when Postgres is unavailable.
type Item struct {
	ID        string          `json:"id"`
	Key       string          `json:"key"`
	Entity    string          `json:"entity"`
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data"`
	Priority  int             `json:"priority"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`

	bucketKey []byte
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Priority <= 0 || i.Priority > 5 {
		i.Priority = 3
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}

// slotKey indexes snapshot items so only the latest per slot is kept.
// Other entities return nil.
func (i Item) slotKey() []byte {
	if i.Entity != EntityGame || i.Key == "" {
		return nil
	}
	return []byte(i.Entity + "/" + i.Key)
}
