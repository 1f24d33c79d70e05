package containers

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/nats"
)

// SetupNatsContainer starts a core NATS server for the trigger bus and
// returns the container and its client URL. The module's default wait
// strategy blocks until the client port accepts connections.
func SetupNatsContainer(ctx context.Context) (*nats.NATSContainer, string, error) {
	natsContainer, err := nats.Run(ctx, "nats:2.10-alpine")
	if err != nil {
		if natsContainer != nil {
			_ = testcontainers.TerminateContainer(natsContainer)
		}
		return nil, "", fmt.Errorf("failed to start nats container: %w", err)
	}

	natsURL, err := natsContainer.ConnectionString(ctx)
	if err != nil {
		_ = testcontainers.TerminateContainer(natsContainer)
		return nil, "", fmt.Errorf("failed to get nats connection string: %w", err)
	}
	return natsContainer, natsURL, nil
}
