package model

import (
	"time"
)

type APIKeyStatus string

const (
	StatusActive   APIKeyStatus = "active"
	StatusInactive APIKeyStatus = "inactive"
)

// APIKey is a long-lived credential for the search endpoint. Token is
// the secret itself; the server only returns it in full at creation
// and may return a masked form afterwards.
type APIKey struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Token        string    `json:"token"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	RequestsUsed int64     `json:"requests_used"`
	Package      Package   `json:"package"`
}

func (k APIKey) Status() APIKeyStatus {
	if k.IsActive {
		return StatusActive
	}
	return StatusInactive
}

// Usage returns the key's counters as a UsagePoint.
func (k APIKey) Usage() UsagePoint {
	return UsagePoint{RequestsUsed: k.RequestsUsed, RequestLimit: k.Package.RequestLimit}
}

// Package is a subscribable plan with a request quota.
type Package struct {
	ID           int64      `json:"id,omitempty"`
	Name         string     `json:"name"`
	RequestLimit int64      `json:"request_limit"`
	Price        float64    `json:"price,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}
