package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fiat-token-bridge/internal/core/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// WalletPoolRepo implements ports.WalletPoolRepository.
type WalletPoolRepo struct {
	col *mongo.Collection
}

func NewWalletPoolRepo(db *mongo.Database) *WalletPoolRepo {
	return &WalletPoolRepo{col: db.Collection(collPoolWallets)}
}

// Allocate flips the oldest available wallet in a single document update.
func (r *WalletPoolRepo) Allocate(ctx context.Context) (*domain.PoolWallet, error) {
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetReturnDocument(options.After)

	var w domain.PoolWallet
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"allocated": false},
		bson.M{"$set": bson.M{"allocated": true, "allocated_at": time.Now().UTC()}},
		opts,
	).Decode(&w)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("allocate pool wallet: %w", err)
	}
	return &w, nil
}

func (r *WalletPoolRepo) Release(ctx context.Context, address string) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": address, "allocated": true},
		bson.M{"$set": bson.M{"allocated": false}, "$unset": bson.M{"allocated_at": ""}},
	)
	if err != nil {
		return fmt.Errorf("release pool wallet: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("pool wallet not allocated: %s", address)
	}
	return nil
}

// Add upserts each wallet with $setOnInsert so existing entries are untouched.
func (r *WalletPoolRepo) Add(ctx context.Context, wallets []domain.PoolWallet) (int, error) {
	added := 0
	for _, w := range wallets {
		createdAt := w.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		doc := bson.M{"allocated": false, "created_at": createdAt}
		if w.DerivationIndex != nil {
			doc["derivation_index"] = *w.DerivationIndex
		}
		res, err := r.col.UpdateOne(ctx,
			bson.M{"_id": w.Address},
			bson.M{"$setOnInsert": doc},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return added, fmt.Errorf("insert pool wallet %s: %w", w.Address, err)
		}
		added += int(res.UpsertedCount)
	}
	return added, nil
}

func (r *WalletPoolRepo) CountAvailable(ctx context.Context) (int64, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"allocated": false})
	if err != nil {
		return 0, fmt.Errorf("count pool wallets: %w", err)
	}
	return n, nil
}
