package models

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TokenData is the session payload shape the bundled session stores
// understand. Only RefreshToken is interpreted; the raw payload is kept
// verbatim.
type TokenData struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ParseTokenData extracts the token fields from a session payload. Payloads
// that are not JSON objects yield an empty TokenData.
func ParseTokenData(payload []byte) TokenData {
	var td TokenData
	if len(payload) == 0 {
		return td
	}
	_ = json.Unmarshal(payload, &td)
	return td
}

type Session struct {
	Profile      string              `json:"profile"`
	RefreshToken string              `json:"-"`
	Payload      jsoniter.RawMessage `json:"payload,omitempty"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// HasRefreshToken is exposed instead of the token itself so callers can
// report session state without leaking credentials.
func (s *Session) HasRefreshToken() bool {
	return s != nil && s.RefreshToken != ""
}
