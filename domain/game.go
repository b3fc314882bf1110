package domain

// Game is the aggregate root every view renders from. Updated strictly
// increases with every accepted mutation.
type Game struct {
	Version       string         `json:"version"`
	UUID          string         `json:"uuid"`
	Created       int64          `json:"created"`
	Updated       int64          `json:"updated"`
	Time          string         `json:"time"`
	TimeInt       int64          `json:"timeInt,omitempty"`
	Quest         *Quest         `json:"quest,omitempty"`
	Users         []User         `json:"users"`
	Posts         []Post         `json:"posts"`
	Views         []View         `json:"views"`
	Reactions     []Reaction     `json:"reactions"`
	Comments      []Comment      `json:"comments"`
	Relationships []Relationship `json:"relationships"`
	Tasks         []Task         `json:"tasks"`
	// QuestLog lists the object uuids of ended quests, oldest first.
	QuestLog []string `json:"questLog,omitempty"`
}

// Valid reports whether the snapshot passes shape validation.
func (g *Game) Valid() bool {
	return g != nil && g.UUID != ""
}

// Clone returns a deep copy so holders never share slices with the owner.
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	cp := *g
	cp.Quest = g.Quest.Clone()
	cp.Users = cloneSlice(g.Users)
	for i := range cp.Users {
		cp.Users[i].Traits = cloneSlice(cp.Users[i].Traits)
	}
	cp.Posts = cloneSlice(g.Posts)
	cp.Views = cloneSlice(g.Views)
	cp.Reactions = cloneSlice(g.Reactions)
	cp.Comments = cloneSlice(g.Comments)
	cp.Relationships = cloneSlice(g.Relationships)
	cp.Tasks = cloneSlice(g.Tasks)
	cp.QuestLog = cloneSlice(g.QuestLog)
	return &cp
}

// Touch bumps Updated to max(now, Updated+1).
func (g *Game) Touch(nowMillis int64) {
	if g == nil {
		return
	}
	if nowMillis > g.Updated {
		g.Updated = nowMillis
	} else {
		g.Updated++
	}
	if g.Created == 0 {
		g.Created = g.Updated
	}
}

func (g *Game) User(uuid string) (*User, bool) {
	if g == nil {
		return nil, false
	}
	for i := range g.Users {
		if g.Users[i].UUID == uuid {
			return &g.Users[i], true
		}
	}
	return nil, false
}

func (g *Game) Post(uuid string) (*Post, bool) {
	if g == nil {
		return nil, false
	}
	for i := range g.Posts {
		if g.Posts[i].UUID == uuid {
			return &g.Posts[i], true
		}
	}
	return nil, false
}

// UpdateUser applies a shallow patch to the user with the same uuid.
func (g *Game) UpdateUser(patch User) bool {
	u, ok := g.User(patch.UUID)
	if !ok {
		return false
	}
	return u.Patch(patch)
}

// AddRelationship keeps relationships set-like by (source, target).
func (g *Game) AddRelationship(r Relationship) bool {
	if g == nil || r.Source == "" || r.Target == "" {
		return false
	}
	for _, existing := range g.Relationships {
		if existing.Key() == r.Key() {
			return false
		}
	}
	g.Relationships = append(g.Relationships, r)
	return true
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
