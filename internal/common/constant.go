// Package common contains shared constants and sentinel errors used across
// moodkeeper components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// Keys of the local metadata table.
const (
	MetaUserID      = "user_id"
	MetaAccessToken = "access_token"
)

// DateLayout is the layout of a date id ("2025-03-14").
const DateLayout = "2006-01-02"
