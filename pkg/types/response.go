package types

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

	// Redirect carries the route the UI should navigate to when the guard
	// denies access ("/login" or "/unauthorized").
	Redirect string `json:"redirect,omitempty"`
}
