package transport

// EventRequest is a pointer event or button press sent by the view layer.
type EventRequest struct {
	Type   string `json:"type"`
	Node   string `json:"node"`
	Kind   string `json:"kind"`
	Cursor string `json:"cursor"`
}

// ControllerLinkResponse carries the entry link for a controller device.
type ControllerLinkResponse struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in_seconds,omitempty"`
}
