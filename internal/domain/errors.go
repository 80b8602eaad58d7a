package domain

import "errors"

// ErrUnauthorized is reported when the device rejects the request
// credentials with 401.
var ErrUnauthorized = errors.New("unauthorized")
