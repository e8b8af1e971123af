// README: Caller identity for the HTTP surface. Verifiers turn a bearer
// token into a Principal; the engine itself never sees tokens.
package identity

import (
	"context"
	"errors"

	"campusride/internal/modules/account"
	"campusride/internal/types"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Principal is the authenticated caller.
type Principal struct {
	UserID types.ID
	Role   account.Role
}

type Verifier interface {
	Verify(ctx context.Context, token string) (Principal, error)
}
