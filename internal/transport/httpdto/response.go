package httpdto

import "encoding/json"

// Response is the envelope for every JSON HTTP reply.
type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{Success: true, Data: data}
}

func NewErrorResponse(err string, code string) Response[any] {
	return Response[any]{Success: false, Error: err, Code: code}
}

// HealthResponse reports dependency state for /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Redis       string `json:"redis,omitempty"`
	Callbacks   int    `json:"callbacks"`
	Subscribers int    `json:"subscribers"`
	Viewers     int    `json:"viewers,omitempty"`
}

// StreamHello is the first frame sent on a /v1/stream connection.
type StreamHello struct {
	ClientID string   `json:"client_id"`
	Types    []string `json:"types"`
}

// EventsResponse lists logged records in the consumer shape.
type EventsResponse struct {
	Events []json.RawMessage `json:"events"`
	Count  int               `json:"count"`
}
