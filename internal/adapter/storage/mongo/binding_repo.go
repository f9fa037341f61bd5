package mongo

import (
	"context"
	"errors"
	"fmt"

	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// BindingRepo implements ports.BindingRepository. Uniqueness on both sides
// comes from the indexes created by EnsureIndexes.
type BindingRepo struct {
	col *mongo.Collection
}

func NewBindingRepo(db *mongo.Database) *BindingRepo {
	return &BindingRepo{col: db.Collection(collBindings)}
}

func (r *BindingRepo) Create(ctx context.Context, b *domain.Binding) error {
	if _, err := r.col.InsertOne(ctx, b); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ports.ErrAlreadyExists
		}
		return fmt.Errorf("insert binding: %w", err)
	}
	return nil
}

func (r *BindingRepo) GetByAccount(ctx context.Context, connectedAccountID string) (*domain.Binding, error) {
	return r.findOne(ctx, bson.M{"connected_account_id": connectedAccountID})
}

func (r *BindingRepo) GetByWallet(ctx context.Context, walletAddress string) (*domain.Binding, error) {
	return r.findOne(ctx, bson.M{"wallet_address": walletAddress})
}

func (r *BindingRepo) findOne(ctx context.Context, filter bson.M) (*domain.Binding, error) {
	var b domain.Binding
	err := r.col.FindOne(ctx, filter).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find binding: %w", err)
	}
	return &b, nil
}
