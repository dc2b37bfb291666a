package http

// APIResponse is the envelope of every JSON response. The HTTP status is
// always 200; Status carries the outcome.
type APIResponse struct {
	Status    int    `json:"status" example:"200"`
	Message   string `json:"message" example:"OK"`
	RequestID string `json:"request_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string         `json:"code,omitempty" example:"ERR_LTE"`
	Field   string         `json:"field,omitempty" example:"Window"`
	Message string         `json:"message,omitempty" example:"Window must be less than or equal to 365"`
	Params  map[string]any `json:"params,omitempty"`
}
