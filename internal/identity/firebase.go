// README: Firebase ID token verification. The role comes from a custom
// claim set when the account is provisioned.
package identity

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"

	"campusride/internal/modules/account"
	"campusride/internal/types"
)

type FirebaseVerifier struct {
	client *auth.Client
}

var _ Verifier = (*FirebaseVerifier)(nil)

func NewFirebaseVerifier(client *auth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (Principal, error) {
	decoded, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	role := account.RoleRider
	if raw, ok := decoded.Claims["role"].(string); ok && account.Role(raw) == account.RoleCaptain {
		role = account.RoleCaptain
	}
	return Principal{UserID: types.ID(decoded.UID), Role: role}, nil
}
