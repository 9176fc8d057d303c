package model

// UsagePoint is one usage counter pair as reported by /usage-stats.
// TokenID and Name identify the key when the server includes them.
type UsagePoint struct {
	TokenID      int64  `json:"token_id,omitempty"`
	Name         string `json:"name,omitempty"`
	RequestsUsed int64  `json:"requests_used"`
	RequestLimit int64  `json:"request_limit"`
}
