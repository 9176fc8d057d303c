package validation

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/searchapi-console/internal/model"
)

const (
	MaxKeyNameLength  = 100
	MinPasswordLength = 8
	MaxResultsPerPage = 100
)

var (
	searchTypes = map[string]string{
		"web":      "web",
		"search":   "web",
		"images":   "images",
		"videos":   "videos",
		"news":     "news",
		"places":   "places",
		"shopping": "shopping",
	}
	engines = map[string]struct{}{
		"google":    {},
		"wikipedia": {},
	}
	// The search endpoint has no hour bucket; "past hour" is sent as day.
	timeRanges = map[string]string{
		"":      "",
		"hour":  "day",
		"qdr:h": "day",
		"day":   "day",
		"qdr:d": "day",
		"week":  "week",
		"qdr:w": "week",
		"month": "month",
		"qdr:m": "month",
		"year":  "year",
		"qdr:y": "year",
	}
)

// KeyName trims name and rejects empty or oversized API key names.
func KeyName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("name is required")
	}
	if len(name) > MaxKeyNameLength {
		return "", fmt.Errorf("name must be at most %d characters", MaxKeyNameLength)
	}
	return name, nil
}

// Login checks that both login fields are present.
func Login(email, password string) error {
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("email is required")
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// Registration validates sign-up fields before they reach the server.
func Registration(r model.Registration) error {
	if strings.TrimSpace(r.FirstName) == "" {
		return fmt.Errorf("first name is required")
	}
	if strings.TrimSpace(r.LastName) == "" {
		return fmt.Errorf("last name is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return fmt.Errorf("email %q is not a valid address", r.Email)
	}
	if len(r.Password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// SearchParams validates p and returns a normalized copy.
func SearchParams(p model.SearchParams) (model.SearchParams, error) {
	p.Query = strings.TrimSpace(p.Query)
	if p.Query == "" {
		return p, fmt.Errorf("query is required")
	}

	if p.SearchType != "" {
		t, ok := searchTypes[strings.ToLower(p.SearchType)]
		if !ok {
			return p, fmt.Errorf("search_type %q is not supported", p.SearchType)
		}
		p.SearchType = t
	}

	if p.Engine != "" {
		if _, ok := engines[strings.ToLower(p.Engine)]; !ok {
			return p, fmt.Errorf("engine %q is not supported", p.Engine)
		}
		p.Engine = strings.ToLower(p.Engine)
	}

	tr, ok := timeRanges[strings.ToLower(p.TimeRange)]
	if !ok {
		return p, fmt.Errorf("time_range %q is not supported", p.TimeRange)
	}
	p.TimeRange = tr

	if p.SafeSearch != nil && (*p.SafeSearch < 0 || *p.SafeSearch > 2) {
		return p, fmt.Errorf("safe_search must be 0, 1 or 2")
	}
	if p.Page < 0 {
		return p, fmt.Errorf("page must be at least 1")
	}
	if p.Num < 0 || p.Num > MaxResultsPerPage {
		return p, fmt.Errorf("num must be between 1 and %d", MaxResultsPerPage)
	}

	return p, nil
}
