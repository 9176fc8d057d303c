package model

import "time"

// TokenPair is the result of a successful login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
}

// Credentials as held by a credential store. Empty strings mean absent.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

func (c Credentials) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

type Registration struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Account is the dashboard user as returned by /register and /me.
type Account struct {
	ID        int64      `json:"id,omitempty"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Email     string     `json:"email"`
	IsActive  bool       `json:"is_active,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}
