package domain

import (
	"encoding/json"
	"fmt"
)

// EventType tags the payload carried by a push channel envelope.
type EventType string

const (
	EventMessage        EventType = "message"
	EventGameUpdate     EventType = "data_update"
	EventController     EventType = "controller"
	EventUpdateData     EventType = "update_data"
	EventRequestControl EventType = "request_control"
)

// Event is one variant of the push channel payload.
type Event interface {
	Type() EventType
}

// MessageEvent carries free text for the operator log.
type MessageEvent struct {
	Text string `json:"text"`
}

// GameUpdateEvent delivers a full snapshot to subscribers.
type GameUpdateEvent struct {
	Game *Game
}

// ControllerEvent tells a session whether it may issue game mutations.
type ControllerEvent struct {
	Controller bool `json:"controller"`
}

// UpdateDataEvent is sent by a snapshot producer for rebroadcast.
type UpdateDataEvent struct {
	Game *Game
}

// RequestControlEvent asks the relay to hand the controller role over.
type RequestControlEvent struct{}

func (MessageEvent) Type() EventType        { return EventMessage }
func (GameUpdateEvent) Type() EventType     { return EventGameUpdate }
func (ControllerEvent) Type() EventType     { return EventController }
func (UpdateDataEvent) Type() EventType     { return EventUpdateData }
func (RequestControlEvent) Type() EventType { return EventRequestControl }

// Envelope is the wire format `{type, data}`.
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// EncodeEvent marshals an event into its envelope.
func EncodeEvent(ev Event) ([]byte, error) {
	if ev == nil {
		return nil, ErrInvalidPayload
	}
	var data any
	switch e := ev.(type) {
	case MessageEvent:
		data = e.Text
	case GameUpdateEvent:
		data = e.Game
	case UpdateDataEvent:
		data = e.Game
	case ControllerEvent:
		data = e
	case RequestControlEvent:
		data = nil
	default:
		return nil, fmt.Errorf("encode %T: %w", ev, ErrUnknownEvent)
	}

	env := Envelope{Type: ev.Type()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

// DecodeEvent parses an envelope into the matching event variant.
func DecodeEvent(payload []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, WrapError(ErrCodeInvalid, "malformed envelope", err)
	}

	switch env.Type {
	case EventMessage:
		var text string
		if err := json.Unmarshal(env.Data, &text); err == nil {
			return MessageEvent{Text: text}, nil
		}
		var msg MessageEvent
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return MessageEvent{Text: string(env.Data)}, nil
		}
		return msg, nil
	case EventGameUpdate, EventUpdateData:
		game, err := decodeGame(env.Data)
		if err != nil {
			return nil, err
		}
		if env.Type == EventUpdateData {
			return UpdateDataEvent{Game: game}, nil
		}
		return GameUpdateEvent{Game: game}, nil
	case EventController:
		var ctl ControllerEvent
		if err := json.Unmarshal(env.Data, &ctl); err != nil {
			return nil, WrapError(ErrCodeInvalid, "malformed controller event", err)
		}
		return ctl, nil
	case EventRequestControl:
		return RequestControlEvent{}, nil
	}
	return nil, fmt.Errorf("%q: %w", env.Type, ErrUnknownEvent)
}

func decodeGame(raw json.RawMessage) (*Game, error) {
	if len(raw) == 0 {
		return nil, ErrInvalidPayload
	}
	var game Game
	if err := json.Unmarshal(raw, &game); err != nil {
		return nil, WrapError(ErrCodeInvalid, "malformed game snapshot", err)
	}
	return &game, nil
}
