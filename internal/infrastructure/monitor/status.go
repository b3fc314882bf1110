package monitor

import "time"

// Status is served by the health endpoint.
type Status struct {
	PostgreSQL bool      `json:"postgresql"`
	Redis      bool      `json:"redis"`
	Buffer     bool      `json:"buffer"`
	BufferSize int       `json:"buffer_size"`
	LastCheck  time.Time `json:"last_check"`
}

// Healthy is true when nothing needs an operator.
func (s Status) Healthy() bool {
	return s.PostgreSQL && s.Buffer
}
