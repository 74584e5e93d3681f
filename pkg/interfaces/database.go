package interfaces

import (
	"context"

	"collabboard/pkg/types"
)

// InteractionStore persists the AI interaction timeline and a dashboard
// state audit trail. Live protocol state never goes through this store; a
// process restart still loses sessions and the shared snapshot.
type InteractionStore interface {
	StoreInteraction(ctx context.Context, interaction *types.AIInteraction) error
	RecentInteractions(ctx context.Context, limit int) ([]*types.AIInteraction, error)
	StoreStateUpdate(ctx context.Context, sessionID, userID string, state map[string]interface{}) error
	HealthCheck(ctx context.Context) error
	Close() error
}
