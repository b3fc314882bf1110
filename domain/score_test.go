package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLimit(t *testing.T) {
	assert.Equal(t, 0.0, GetLimit(0))
	assert.Equal(t, 100.0, GetLimit(20))
	assert.Equal(t, 0.0, GetLimit(-5))

	prev := GetLimit(0)
	for n := 1; n < 5000; n++ {
		cur := GetLimit(n)
		assert.Greater(t, cur, prev, "limit must grow at n=%d", n)
		assert.Less(t, cur, MaxEngagement)
		prev = cur
	}
	assert.InDelta(t, MaxEngagement, GetLimit(1_000_000), 0.01)
}

func TestGetAvgEngagement(t *testing.T) {
	tests := []struct {
		name                       string
		views, comments, reactions int
		want                       float64
	}{
		{name: "no views", views: 0, comments: 3, reactions: 4, want: 200},
		{name: "balanced", views: 10, comments: 2, reactions: 3, want: 50},
		{name: "more reactions than views", views: 2, comments: 1, reactions: 3, want: 200},
		{name: "quiet", views: 8, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetAvgEngagement(tt.views, tt.comments, tt.reactions))
		})
	}
}

func TestLives(t *testing.T) {
	assert.Equal(t, "♡♡♡♡♡", Lives(200, 0))
	assert.Equal(t, "♡♡♡♡", Lives(100, 50))
	assert.Equal(t, "♡♡♡", Lives(75, 50))
	assert.Equal(t, "♡♡", Lives(60, 50))
	assert.Equal(t, "♡", Lives(51, 50))
	assert.Equal(t, "💀", Lives(50, 50))
	assert.Equal(t, "💀", Lives(10, 200))
}

func TestComputeScore(t *testing.T) {
	g := &Game{
		UUID:  "g1",
		Views: make([]View, 10),
		Tasks: make([]Task, 20),
	}
	score := ComputeScore(g)
	assert.Equal(t, 0.0, score.Engagement)
	assert.Equal(t, 100.0, score.Limit)
	assert.True(t, score.GameOver)

	fresh := ComputeScore(&Game{UUID: "g2"})
	assert.False(t, fresh.GameOver)
	assert.Equal(t, MaxEngagement, fresh.Engagement)
}
