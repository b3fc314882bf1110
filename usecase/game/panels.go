package game

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/algorithm/domain"
	"github.com/fastygo/algorithm/internal/graph"
	"github.com/fastygo/algorithm/usecase"
)

type panel[T any] struct {
	visible bool
	content *T
}

func (p panel[T]) shown() *T {
	if !p.visible {
		return nil
	}
	return p.content
}

// userByID resolves a user through the detail cache, then the held
// snapshot, then the store.
func (s *Session) userByID(ctx context.Context, id string) (*domain.User, error) {
	key := "user:" + id
	if v, ok := s.details.Get(key); ok {
		return v.(*domain.User), nil
	}
	var user *domain.User
	if u, ok := s.snapshot.User(id); ok {
		cp := *u
		user = &cp
	} else {
		u, err := s.backend.User(ctx, id)
		if err != nil {
			return nil, err
		}
		user = u
	}
	s.details.Add(key, user)
	return user, nil
}

func (s *Session) postByID(ctx context.Context, id string) (*domain.Post, error) {
	key := "post:" + id
	if v, ok := s.details.Get(key); ok {
		return v.(*domain.Post), nil
	}
	var post *domain.Post
	if p, ok := s.snapshot.Post(id); ok {
		cp := *p
		post = &cp
	} else {
		p, err := s.backend.Post(ctx, id)
		if err != nil {
			return nil, err
		}
		post = p
	}
	s.details.Add(key, post)
	return post, nil
}

func (s *Session) nodeImage(id string) string {
	if s.scene == nil {
		return ""
	}
	return s.scene.NodeImage(id)
}

func (s *Session) summarizePost(ctx context.Context, id string) (*PostSummary, error) {
	post, err := s.postByID(ctx, id)
	if err != nil {
		return nil, err
	}
	summary := &PostSummary{
		Post:    *post,
		Image:   s.nodeImage(post.Author),
		Created: domain.FormatGameTime(post.Created),
	}
	if author, err := s.userByID(ctx, post.Author); err == nil {
		summary.Author = author.FullName()
	} else {
		s.logger.Warn("post author not found", zap.String("post", id), zap.String("author", post.Author), zap.Error(err))
	}
	return summary, nil
}

func (s *Session) showUserDetail(ctx context.Context, id string) {
	user, err := s.userByID(ctx, id)
	if err != nil {
		s.logger.Warn("cannot show user detail", zap.String("user", id), zap.Error(err))
		return
	}
	s.user = panel[UserPanel]{visible: true, content: &UserPanel{
		User:     *user,
		FullName: user.FullName(),
		Image:    s.nodeImage(id),
	}}
	s.post.visible = false
}

func (s *Session) hideUserDetail(context.Context, string) {
	s.user.visible = false
}

// showPostDetail renders reactions and comments as of the current game clock.
func (s *Session) showPostDetail(ctx context.Context, id string) {
	summary, err := s.summarizePost(ctx, id)
	if err != nil {
		s.logger.Warn("cannot show post detail", zap.String("post", id), zap.Error(err))
		return
	}

	counts := make(map[domain.ReactionKind]int, len(domain.ReactionKinds))
	for _, kind := range domain.ReactionKinds {
		counts[kind] = 0
	}
	reactions, err := s.backend.ReactionsOnPost(ctx, id, s.clock)
	if err != nil {
		s.logger.Warn("cannot load reactions", zap.String("post", id), zap.Error(err))
	}
	for _, r := range reactions {
		if r.Value.Valid() {
			counts[r.Value]++
		}
	}

	comments, err := s.backend.CommentsOnPost(ctx, id, s.clock)
	if err != nil {
		s.logger.Warn("cannot load comments", zap.String("post", id), zap.Error(err))
	}
	lines := make([]CommentLine, 0, len(comments))
	for _, c := range comments {
		line := CommentLine{Comment: c, Created: domain.FormatGameTime(c.Time)}
		if author, err := s.userByID(ctx, c.Author); err == nil {
			line.Author = author.FullName()
			line.Avatar = s.builder.Style().AvatarPath + author.ProfilePicture
		}
		lines = append(lines, line)
	}

	s.post = panel[PostPanel]{visible: true, content: &PostPanel{
		PostSummary: *summary,
		Reactions:   counts,
		Comments:    lines,
	}}
	s.user.visible = false
}

func (s *Session) hidePostDetail(context.Context, string) {
	s.post.visible = false
}

// navigate moves the user or post panel. Current toggles the panel of the
// last shown element; prev and next need one.
func (s *Session) navigate(ctx context.Context, kind graph.NodeKind, cursor usecase.Cursor) error {
	if !cursor.Valid() {
		return domain.WrapError(domain.ErrCodeInvalid, "unknown cursor "+string(cursor), domain.ErrInvalidPayload)
	}

	var last string
	switch kind {
	case graph.NodeUser:
		if s.user.content != nil {
			last = s.user.content.User.UUID
		}
	case graph.NodePost:
		if s.post.content != nil {
			last = s.post.content.Post.UUID
		}
	default:
		return domain.WrapError(domain.ErrCodeInvalid, "unknown navigation kind "+string(kind), domain.ErrInvalidPayload)
	}

	if last == "" && cursor != usecase.CursorFirst && cursor != usecase.CursorLast {
		s.logger.Debug("nothing shown yet", zap.String("kind", string(kind)), zap.String("cursor", string(cursor)))
		return nil
	}

	if cursor == usecase.CursorCurrent {
		switch kind {
		case graph.NodeUser:
			if s.user.visible {
				s.user.visible = false
			} else {
				s.showUserDetail(ctx, last)
			}
		case graph.NodePost:
			if s.post.visible {
				s.post.visible = false
			} else {
				s.showPostDetail(ctx, last)
			}
		}
		return nil
	}

	switch kind {
	case graph.NodeUser:
		user, err := s.backend.NavigateUsers(ctx, cursor, last)
		if err != nil {
			return err
		}
		s.showUserDetail(ctx, user.UUID)
	case graph.NodePost:
		post, err := s.backend.NavigatePosts(ctx, cursor, last)
		if err != nil {
			return err
		}
		s.showPostDetail(ctx, post.UUID)
	}
	return nil
}
