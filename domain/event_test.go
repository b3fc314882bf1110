package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"data_update","data":{"uuid":"g1","updated":5,"users":[{"uuid":"u1","name":"Ada"}]}}`))
	require.NoError(t, err)
	update, ok := ev.(GameUpdateEvent)
	require.True(t, ok)
	assert.Equal(t, "g1", update.Game.UUID)
	assert.Equal(t, int64(5), update.Game.Updated)
	assert.Equal(t, "Ada", update.Game.Users[0].Name)

	ev, err = DecodeEvent([]byte(`{"type":"message","data":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, MessageEvent{Text: "hello"}, ev)

	ev, err = DecodeEvent([]byte(`{"type":"controller","data":{"controller":true}}`))
	require.NoError(t, err)
	assert.Equal(t, ControllerEvent{Controller: true}, ev)

	_, err = DecodeEvent([]byte(`{"type":"weather","data":{}}`))
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = DecodeEvent([]byte(`not json`))
	assert.True(t, IsDomainError(err, ErrCodeInvalid))

	_, err = DecodeEvent([]byte(`{"type":"data_update"}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestEncodeEventRoundTrip(t *testing.T) {
	events := []Event{
		MessageEvent{Text: "hi"},
		ControllerEvent{Controller: true},
		RequestControlEvent{},
	}
	for _, ev := range events {
		raw, err := EncodeEvent(ev)
		require.NoError(t, err)
		decoded, err := DecodeEvent(raw)
		require.NoError(t, err)
		assert.Equal(t, ev, decoded)
	}

	raw, err := EncodeEvent(UpdateDataEvent{Game: &Game{UUID: "g1", Updated: 9}})
	require.NoError(t, err)
	decoded, err := DecodeEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "g1", decoded.(UpdateDataEvent).Game.UUID)
}

func TestGameCloneIsDeep(t *testing.T) {
	g := &Game{
		UUID:  "g1",
		Quest: &Quest{ObjectUUID: "p1"},
		Users: []User{{UUID: "u1", Traits: []string{"curious"}}},
	}
	cp := g.Clone()
	cp.Users[0].Traits[0] = "bored"
	cp.Quest.ObjectUUID = "p2"
	assert.Equal(t, "curious", g.Users[0].Traits[0])
	assert.Equal(t, "p1", g.Quest.ObjectUUID)
}

func TestGameTouchIsMonotonic(t *testing.T) {
	g := &Game{Updated: 100}
	g.Touch(50)
	assert.Equal(t, int64(101), g.Updated)
	g.Touch(500)
	assert.Equal(t, int64(500), g.Updated)
}

func TestUpdateUserPatch(t *testing.T) {
	g := &Game{Users: []User{{UUID: "u1", Name: "Ada", City: "London"}}}
	assert.True(t, g.UpdateUser(User{UUID: "u1", City: "Paris"}))
	assert.Equal(t, "Ada", g.Users[0].Name)
	assert.Equal(t, "Paris", g.Users[0].City)
	assert.False(t, g.UpdateUser(User{UUID: "nobody"}))
}

func TestAddRelationshipDedupes(t *testing.T) {
	g := &Game{}
	assert.True(t, g.AddRelationship(Relationship{Source: "a", Target: "b", Label: RelationshipFollow}))
	assert.False(t, g.AddRelationship(Relationship{Source: "a", Target: "b", Label: RelationshipFollow}))
	assert.True(t, g.AddRelationship(Relationship{Source: "b", Target: "a", Label: RelationshipFollow}))
	assert.Len(t, g.Relationships, 2)
}
