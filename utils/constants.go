package utils

import (
	"time"
)

// Request handling constants
const (
	// RequestTimeout bounds a single API call including its transaction
	RequestTimeout = 30 * time.Second
)

// ContextKey namespaces values stored on a request context
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	EndpointKey  ContextKey = "endpoint"
)
