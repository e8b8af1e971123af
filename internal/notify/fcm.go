// README: Firebase Cloud Messaging delivery.
package notify

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"

	"campusride/internal/types"
)

// TokenLookup resolves a user to their current device token. An empty
// token means the user has no registered device.
type TokenLookup func(ctx context.Context, userID types.ID) (string, error)

type FCMNotifier struct {
	client *messaging.Client
	tokens TokenLookup
}

var _ Notifier = (*FCMNotifier)(nil)

func NewFCMNotifier(client *messaging.Client, tokens TokenLookup) *FCMNotifier {
	return &FCMNotifier{client: client, tokens: tokens}
}

func (n *FCMNotifier) Notify(ctx context.Context, userID types.ID, event string, payload map[string]string) error {
	token, err := n.tokens(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup device token: %w", err)
	}
	if token == "" {
		return nil
	}

	data := make(map[string]string, len(payload)+1)
	for k, v := range payload {
		data[k] = v
	}
	data["event"] = event

	_, err = n.client.Send(ctx, &messaging.Message{
		Token: token,
		Data:  data,
	})
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}
