package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/fastygo/algorithm/domain"
)

// Action is a pointer event or button press coming from the view layer.
type Action struct {
	Type   string `json:"type"`
	Node   string `json:"node,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Cursor Cursor `json:"cursor,omitempty"`
}

type ActionHandler func(ctx context.Context, action Action) error
type QueryHandler func(ctx context.Context) (interface{}, error)

// Dispatcher is the declarative event-to-action map between the transport
// and the session.
type Dispatcher struct {
	actions map[string]ActionHandler
	queries map[string]QueryHandler
	mu      sync.RWMutex
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		actions: make(map[string]ActionHandler),
		queries: make(map[string]QueryHandler),
	}
}

func (d *Dispatcher) RegisterAction(name string, handler ActionHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions[name] = handler
}

func (d *Dispatcher) RegisterQuery(name string, handler QueryHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries[name] = handler
}

// Actions lists the registered action names.
func (d *Dispatcher) Actions() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.actions))
	for name := range d.actions {
		names = append(names, name)
	}
	return names
}

func (d *Dispatcher) Execute(ctx context.Context, action Action) error {
	d.mu.RLock()
	handler, ok := d.actions[action.Type]
	d.mu.RUnlock()
	if !ok {
		return domain.WrapError(domain.ErrCodeInvalid, fmt.Sprintf("action %q not registered", action.Type), domain.ErrUnknownEvent)
	}
	return handler(ctx, action)
}

func (d *Dispatcher) Query(ctx context.Context, name string) (interface{}, error) {
	d.mu.RLock()
	handler, ok := d.queries[name]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("query handler %s not registered", name)
	}
	return handler(ctx)
}
