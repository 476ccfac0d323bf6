// Package metadata stores small key/value settings of the local database,
// such as the signed-in user id and the access token.
//
// Get returns (nil, nil) for a missing key.
package metadata
