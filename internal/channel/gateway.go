// Package channel delivers messages through the WhatsApp automation bridge and
// resolves the per-team credentials it needs.
package channel

import (
	"context"

	"github.com/vhvplatform/go-whatsapp-automation-service/internal/domain"
)

// Gateway is the outbound messaging channel used by the dispatcher
type Gateway interface {
	// IsAuthenticated reports whether the channel session is logged in
	IsAuthenticated(ctx context.Context) bool
	// SendMessage delivers body to recipient. A false result with a nil error
	// is a refused send; a non-nil error is a transport or protocol failure.
	SendMessage(ctx context.Context, recipient, body string, creds domain.ChannelCredentials) (bool, error)
}
