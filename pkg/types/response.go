package types

// SuccessEnvelope wraps every 2xx payload.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// MessageResponse is the payload for operations whose outcome is a user-facing sentence.
type MessageResponse struct {
	Message string `json:"message"`
}
