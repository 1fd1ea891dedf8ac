// Package store holds the ownership adapter implementations the ledger
// writes leases through.
package store

import (
	"context"

	"phonelease/internal/registration/models"
	"phonelease/pkg/domain"
)

// OwnershipAdapter is the ledger's only path to ownership state. GetRecord
// returns sentinel.ErrNotFound for an unknown identifier.
type OwnershipAdapter interface {
	SetRecord(ctx context.Context, record models.Record) error
	GetRecord(ctx context.Context, id domain.Identifier) (*models.Record, error)
	CanModify(ctx context.Context, id domain.Identifier, actor domain.Identity) (bool, error)
}

// Callback is notified on every SetRecord inside a transaction. A non-nil
// error aborts the transaction.
type Callback interface {
	AcknowledgeRecord(ctx context.Context, record models.Record) error
}

func canModify(record *models.Record, actor domain.Identity) bool {
	return record != nil && actor != domain.ZeroIdentity && record.Owner == actor
}
