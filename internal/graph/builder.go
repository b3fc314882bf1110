package graph

import (
	"errors"

	"go.uber.org/zap"

	"github.com/fastygo/algorithm/domain"
)

// Style carries the visual attributes and gravity weights per element type.
type Style struct {
	AvatarPath string

	UserSize float64

	PostSize         float64
	PostFocusedSize  float64
	PostColor        string
	PostFocusedColor string
	PostImage        string
	PostProgram      string

	AuthorshipColor  string
	AuthorshipSize   float64
	AuthorshipWeight float64

	FriendshipColor  string
	FriendshipSize   float64
	FriendshipWeight float64

	ViewColor  string
	ViewSize   float64
	ViewWeight float64
}

// DefaultStyle keeps view edges weightless so they stay visible without
// pulling on the layout.
func DefaultStyle() Style {
	return Style{
		AvatarPath:       "/avatars/",
		UserSize:         20,
		PostSize:         8,
		PostFocusedSize:  15,
		PostColor:        "#ffffff",
		PostFocusedColor: "#ff4d4d",
		PostImage:        "/icons/card-text.svg",
		PostProgram:      "pictogram",
		AuthorshipColor:  "#ffffff",
		AuthorshipSize:   2,
		AuthorshipWeight: 4,
		FriendshipColor:  "#ffffff",
		FriendshipSize:   4,
		FriendshipWeight: 2,
		ViewColor:        "#ffffff",
		ViewSize:         0.1,
		ViewWeight:       0,
	}
}

const (
	labelAuthor  = "author"
	labelFriends = "friends"
	labelView    = "view"
)

// Builder turns domain collections into graph nodes and edges.
type Builder struct {
	style  Style
	logger *zap.Logger
}

func NewBuilder(style Style, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{style: style, logger: logger}
}

func (b *Builder) Style() Style {
	return b.style
}

// Build creates a fresh graph. A nil collection skips its category.
func (b *Builder) Build(users []domain.User, posts []domain.Post, friendships []domain.Relationship, ratings []domain.View) *Graph {
	g := New()
	b.AddUsers(g, users)
	b.AddPosts(g, posts)
	b.AddFriendships(g, friendships)
	b.AddRatings(g, ratings)
	return g
}

func (b *Builder) AddUsers(g *Graph, users []domain.User) {
	if users == nil {
		b.logger.Error("cannot add user nodes, users is nil")
		return
	}
	for _, u := range users {
		if g.HasNode(u.UUID) {
			continue
		}
		err := g.AddNode(Node{
			ID:    u.UUID,
			Kind:  NodeUser,
			Size:  b.style.UserSize,
			Image: b.style.AvatarPath + u.ProfilePicture,
		})
		if err != nil {
			b.logger.Warn("skipping user node", zap.String("user", u.UUID), zap.Error(err))
		}
	}
}

func (b *Builder) AddPosts(g *Graph, posts []domain.Post) {
	if posts == nil {
		b.logger.Error("cannot add post nodes, posts is nil")
		return
	}
	for _, p := range posts {
		b.AddPost(g, p)
	}
}

// AddPost adds the post node and its authorship edge. It reports whether a
// node was added; an existing post is left untouched.
func (b *Builder) AddPost(g *Graph, post domain.Post) bool {
	if g.HasNode(post.UUID) {
		return false
	}
	err := g.AddNode(Node{
		ID:      post.UUID,
		Kind:    NodePost,
		Size:    b.style.PostSize,
		Color:   b.style.PostColor,
		Image:   b.style.PostImage,
		Program: b.style.PostProgram,
	})
	if err != nil {
		b.logger.Warn("skipping post node", zap.String("post", post.UUID), zap.Error(err))
		return false
	}
	b.addEdge(g, Edge{
		Source: post.Author,
		Target: post.UUID,
		Label:  labelAuthor,
		Size:   b.style.AuthorshipSize,
		Color:  b.style.AuthorshipColor,
		Weight: b.style.AuthorshipWeight,
	})
	return true
}

// AddFriendships treats friendship as undirected: an edge in either
// direction suppresses the reverse one.
func (b *Builder) AddFriendships(g *Graph, friendships []domain.Relationship) {
	if friendships == nil {
		b.logger.Error("cannot add friendship edges, friendships is nil")
		return
	}
	for _, f := range friendships {
		if g.HasUndirectedEdge(f.Source, f.Target) {
			continue
		}
		b.addEdge(g, Edge{
			Source: f.Source,
			Target: f.Target,
			Label:  labelFriends,
			Size:   b.style.FriendshipSize,
			Color:  b.style.FriendshipColor,
			Weight: b.style.FriendshipWeight,
		})
	}
}

func (b *Builder) AddRatings(g *Graph, ratings []domain.View) {
	if ratings == nil {
		b.logger.Error("cannot add view edges, ratings is nil")
		return
	}
	for _, r := range ratings {
		b.AddRating(g, r)
	}
}

// AddRating adds one user->post view edge, deduplicated by (user, post).
func (b *Builder) AddRating(g *Graph, rating domain.View) bool {
	if g.HasEdge(rating.User, rating.Post) {
		return false
	}
	return b.addEdge(g, Edge{
		Source: rating.User,
		Target: rating.Post,
		Label:  labelView,
		Size:   b.style.ViewSize,
		Color:  b.style.ViewColor,
		Weight: b.style.ViewWeight,
	})
}

func (b *Builder) addEdge(g *Graph, e Edge) bool {
	if err := g.AddEdge(e); err != nil {
		if errors.Is(err, ErrEdgeExists) {
			return false
		}
		b.logger.Warn("skipping edge", zap.String("label", e.Label), zap.Error(err))
		return false
	}
	return true
}
