package http

import "time"

// Envelope wraps every JSON body except the bare prediction result.
type Envelope struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError is one rejected request field.
type ValidationError struct {
	Code    string                 `json:"code,omitempty"`
	Field   string                 `json:"field,omitempty"`
	Message string                 `json:"message,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// TimeRange is a closed [From, To] query window.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Page is a window of stored records, newest first.
type Page struct {
	Items  interface{} `json:"items"`
	Total  int         `json:"total"`
	Window TimeRange   `json:"window"`
}
