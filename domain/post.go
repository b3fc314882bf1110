package domain

// ReactionKind enumerates the reactions a user can leave on a post.
type ReactionKind string

const (
	ReactionLove    ReactionKind = "love"
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
	ReactionHate    ReactionKind = "hate"
)

// ReactionKinds lists every known kind in display order.
var ReactionKinds = []ReactionKind{ReactionLove, ReactionLike, ReactionDislike, ReactionHate}

func (k ReactionKind) Valid() bool {
	switch k {
	case ReactionLove, ReactionLike, ReactionDislike, ReactionHate:
		return true
	}
	return false
}

// Post is append-only once surfaced.
type Post struct {
	UUID      string `json:"uuid"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	Reasoning string `json:"reasoning"`
	Created   int64  `json:"created"`
}

type Reaction struct {
	UUID   string       `json:"uuid"`
	Value  ReactionKind `json:"value"`
	Author string       `json:"author"`
	Post   string       `json:"post"`
	Time   int64        `json:"time,omitempty"`
}

// Comment may reply to another comment through Parent.
type Comment struct {
	UUID   string `json:"uuid"`
	Author string `json:"author"`
	Post   string `json:"post"`
	Parent string `json:"parent,omitempty"`
	Text   string `json:"text,omitempty"`
	Time   int64  `json:"time,omitempty"`
}

// View records that a user has seen a post and what the model thought of it.
// Older snapshots call it a rating.
type View struct {
	UUID         string  `json:"uuid"`
	User         string  `json:"user"`
	Post         string  `json:"post"`
	Reasoning    string  `json:"reasoning"`
	Rating       float64 `json:"rating"`
	JoyScore     float64 `json:"joyScore"`
	ReactionUrge float64 `json:"reactionUrge"`
	CommentUrge  float64 `json:"commentUrge"`
	ShareUrge    float64 `json:"shareUrge"`
	Time         int64   `json:"time"`
}

// RelationshipLabel names a directed social edge.
type RelationshipLabel string

const RelationshipFollow RelationshipLabel = "follow"

type Relationship struct {
	Source string            `json:"source"`
	Target string            `json:"target"`
	Label  RelationshipLabel `json:"label"`
}

// Key identifies the relationship for set semantics.
func (r Relationship) Key() string {
	return r.Source + "->" + r.Target
}
