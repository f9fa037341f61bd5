package mongo

import (
	"context"
	"fmt"
	"time"

	"fiat-token-bridge/internal/core/domain"

	"go.mongodb.org/mongo-driver/mongo"
)

type auditDoc struct {
	ID           string    `bson:"_id"`
	Actor        string    `bson:"actor,omitempty"`
	Action       string    `bson:"action"`
	ResourceType string    `bson:"resource_type"`
	ResourceID   string    `bson:"resource_id,omitempty"`
	Details      string    `bson:"details,omitempty"`
	IPAddress    string    `bson:"ip_address,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
}

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	col *mongo.Collection
}

func NewAuditRepo(db *mongo.Database) *AuditRepo {
	return &AuditRepo{col: db.Collection(collAuditLogs)}
}

func (r *AuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	_, err := r.col.InsertOne(ctx, auditDoc{
		ID:           entry.ID.String(),
		Actor:        entry.Actor,
		Action:       string(entry.Action),
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Details:      entry.Details,
		IPAddress:    entry.IPAddress,
		CreatedAt:    entry.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
