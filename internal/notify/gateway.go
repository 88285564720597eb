// internal/notify/gateway.go
package notify

import (
	"context"

	"leadrouter/internal/models"
)

// Delivery is the gateway's report of a single send.
type Delivery struct {
	Delivered  bool   `json:"delivered"`
	ExternalID string `json:"externalId,omitempty"`
}

// Gateway delivers notifications. The routing core depends only on this
// contract; transport details stay behind it. Non-delivery is non-fatal to
// callers: they log, count, and move on.
type Gateway interface {
	Send(ctx context.Context, notice models.Notice) (Delivery, error)
}
