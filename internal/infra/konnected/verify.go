package konnected

import (
	"context"
	"fmt"

	"gdo-bridge/internal/domain"
)

// VerifyConnection checks a device once, without opening the event stream.
// It distinguishes a reachable device that accepts the given credentials
// from one that needs credentials and one that rejects them. Any status
// other than 200 or 401 is returned as an error.
func VerifyConnection(ctx context.Context, address string, port int, username, password string, opts ...Option) (domain.VerificationResult, error) {
	id := Identity{
		Address:  address,
		Port:     port,
		Username: username,
		Password: password,
	}
	c := NewClient(id, nil, opts...)

	ok, err := c.get(ctx, DeviceID, nil)
	if err != nil {
		return "", fmt.Errorf("verifying connection: %w", err)
	}
	if ok {
		return domain.VerificationSuccess, nil
	}
	if id.HasCredentials() {
		return domain.VerificationInvalidCredentials, nil
	}
	return domain.VerificationAuthenticationRequired, nil
}
