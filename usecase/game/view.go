package game

import (
	"fmt"

	"github.com/fastygo/algorithm/domain"
	"github.com/fastygo/algorithm/internal/graph"
	"github.com/fastygo/algorithm/usecase/quest"
)

// Navigation is the page the view layer should display.
type Navigation string

const (
	NavMain      Navigation = "main"
	NavCinematic Navigation = "cinematic"
)

type PopupKind string

const (
	PopupQuestResult PopupKind = "questResult"
	PopupGameOver    PopupKind = "gameOver"
)

type Popup struct {
	Kind     PopupKind            `json:"kind"`
	Title    string               `json:"title"`
	Quote    string               `json:"quote,omitempty"`
	Waiting  bool                 `json:"waiting"`
	Closable bool                 `json:"closable"`
	Results  *domain.QuestResults `json:"results,omitempty"`
}

type ScoreView struct {
	domain.Score
	EngagementText string `json:"engagementText"`
	LimitText      string `json:"limitText"`
}

func newScoreView(s domain.Score) ScoreView {
	return ScoreView{
		Score:          s,
		EngagementText: fmt.Sprintf("%.1f", s.Engagement),
		LimitText:      fmt.Sprintf("%.1f", s.Limit),
	}
}

type ClockView struct {
	TimeInt int64  `json:"timeInt"`
	Date    string `json:"date,omitempty"`
	Clock   string `json:"clock,omitempty"`
}

func newClockView(timeInt int64) ClockView {
	if timeInt < 1 {
		return ClockView{}
	}
	return ClockView{
		TimeInt: timeInt,
		Date:    domain.FormatGameDate(timeInt),
		Clock:   domain.FormatGameClock(timeInt),
	}
}

// PostSummary is a post with its author resolved for display.
type PostSummary struct {
	Post    domain.Post `json:"post"`
	Author  string      `json:"author"`
	Image   string      `json:"image,omitempty"`
	Created string      `json:"created"`
}

type UserPanel struct {
	User     domain.User `json:"user"`
	FullName string      `json:"fullName"`
	Image    string      `json:"image,omitempty"`
}

type CommentLine struct {
	Comment domain.Comment `json:"comment"`
	Author  string         `json:"author"`
	Avatar  string         `json:"avatar,omitempty"`
	Created string         `json:"created"`
}

type PostPanel struct {
	PostSummary
	Reactions map[domain.ReactionKind]int `json:"reactions"`
	Comments  []CommentLine               `json:"comments"`
}

// View is the pure description of everything the view layer renders.
type View struct {
	Navigation Navigation   `json:"navigation"`
	Loop       LoopState    `json:"loop"`
	Score      ScoreView    `json:"score"`
	Clock      ClockView    `json:"clock"`
	Quest      quest.View   `json:"quest"`
	QuestPost  *PostSummary `json:"questPost,omitempty"`
	Hint       string       `json:"hint,omitempty"`
	UserDetail *UserPanel   `json:"userDetail,omitempty"`
	PostDetail *PostPanel   `json:"postDetail,omitempty"`
	Popup      *Popup       `json:"popup,omitempty"`
	Controller bool         `json:"controller"`
	Graph      *graph.Frame `json:"graph,omitempty"`
}
