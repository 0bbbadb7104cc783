package driven

import (
	"context"

	"github.com/ericfisherdev/repodigest/internal/domain/model"
)

// Mailer defines the driven port for outgoing notifications.
type Mailer interface {
	Send(ctx context.Context, msg model.Message) error
}
