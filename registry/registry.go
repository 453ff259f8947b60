// Package registry reads client configuration. The engine never writes to it.
package registry

import (
	"context"
	"fmt"

	"newsdesk/types"
)

// ClientRegistry is the read-only source of client records
type ClientRegistry interface {
	List(ctx context.Context) ([]types.ClientConfig, error)
	Get(ctx context.Context, id string) (types.ClientConfig, error)
}

// find is the shared Get implementation for registries that only List
func find(ctx context.Context, r ClientRegistry, id string) (types.ClientConfig, error) {
	clients, err := r.List(ctx)
	if err != nil {
		return types.ClientConfig{}, err
	}
	for _, c := range clients {
		if c.ID == id {
			return c, nil
		}
	}
	return types.ClientConfig{}, fmt.Errorf("client %q: %w", id, types.ErrUnknownClient)
}

// Static serves a fixed list; used by tests and the one-shot CLI
type Static []types.ClientConfig

func (s Static) List(ctx context.Context) ([]types.ClientConfig, error) {
	return append([]types.ClientConfig(nil), s...), nil
}

func (s Static) Get(ctx context.Context, id string) (types.ClientConfig, error) {
	return find(ctx, s, id)
}
