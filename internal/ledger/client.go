package ledger

import "context"

// LocalClient adapts the registry to the remote-ledger contract the transfer
// saga consumes, for deployments where the ledger runs in the same process as
// the saga coordinator. Registry errors already carry the sentinel failure
// kinds, so no further classification is needed.
type LocalClient struct {
	registry *Registry
}

func NewLocalClient(registry *Registry) *LocalClient {
	return &LocalClient{registry: registry}
}

func (c *LocalClient) Withdraw(ctx context.Context, account string, amount int64, idempotencyKey string) (string, error) {
	return c.registry.Withdraw(ctx, account, amount, idempotencyKey)
}

func (c *LocalClient) Deposit(ctx context.Context, account string, amount int64, idempotencyKey string) (string, error) {
	return c.registry.Deposit(ctx, account, amount, idempotencyKey)
}
