package mongo

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SettlementRepo implements ports.SettlementRepository.
type SettlementRepo struct {
	col *mongo.Collection
}

func NewSettlementRepo(db *mongo.Database) *SettlementRepo {
	return &SettlementRepo{col: db.Collection(collSettlements)}
}

// Insert relies on the _id uniqueness of the idempotency key.
func (r *SettlementRepo) Insert(ctx context.Context, s *domain.SettlementRecord) error {
	if _, err := r.col.InsertOne(ctx, s); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ports.ErrAlreadyExists
		}
		return fmt.Errorf("insert settlement: %w", err)
	}
	return nil
}

func (r *SettlementRepo) Get(ctx context.Context, idempotencyKey string) (*domain.SettlementRecord, error) {
	var s domain.SettlementRecord
	err := r.col.FindOne(ctx, bson.M{"_id": idempotencyKey}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settlement: %w", err)
	}
	return &s, nil
}

func (r *SettlementRepo) RecordSubmission(ctx context.Context, idempotencyKey, txHash, rawTx string) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{
			"_id":           idempotencyKey,
			"status":        domain.SettlementStatusPending,
			"chain_tx_hash": bson.M{"$in": bson.A{nil, ""}},
		},
		bson.M{"$set": bson.M{
			"chain_tx_hash": txHash,
			"raw_tx":        rawTx,
			"updated_at":    time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	if res.MatchedCount == 0 {
		return ports.ErrStateConflict
	}
	return nil
}

func (r *SettlementRepo) ReleaseSubmission(ctx context.Context, idempotencyKey, txHash string) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{
			"_id":           idempotencyKey,
			"status":        domain.SettlementStatusPending,
			"chain_tx_hash": txHash,
		},
		bson.M{
			"$set":   bson.M{"updated_at": time.Now().UTC()},
			"$unset": bson.M{"chain_tx_hash": "", "raw_tx": ""},
		},
	)
	if err != nil {
		return fmt.Errorf("release submission: %w", err)
	}
	if res.MatchedCount == 0 {
		return ports.ErrStateConflict
	}
	return nil
}

func (r *SettlementRepo) Transition(ctx context.Context, idempotencyKey string, u ports.SettlementUpdate) error {
	set := bson.M{"status": u.To, "updated_at": time.Now().UTC()}
	if u.TokenAmount != "" {
		set["token_amount"] = u.TokenAmount
	}
	if u.ChainTxHash != "" {
		set["chain_tx_hash"] = u.ChainTxHash
	}
	if u.CounterpartyTransferID != "" {
		set["counterparty_transfer_id"] = u.CounterpartyTransferID
	}
	unset := bson.M{}
	if u.FailureReason != "" {
		set["failure_reason"] = u.FailureReason
	} else {
		unset["failure_reason"] = ""
	}
	if u.Reopen {
		delete(set, "chain_tx_hash")
		unset["chain_tx_hash"] = ""
		unset["raw_tx"] = ""
		set["attempts"] = 0
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": idempotencyKey, "status": u.From}, update)
	if err != nil {
		return fmt.Errorf("transition settlement: %w", err)
	}
	if res.MatchedCount == 0 {
		return ports.ErrStateConflict
	}
	return nil
}

func (r *SettlementRepo) IncrementAttempts(ctx context.Context, idempotencyKey string) (int, error) {
	var s domain.SettlementRecord
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": idempotencyKey},
		bson.M{"$inc": bson.M{"attempts": 1}, "$set": bson.M{"updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("settlement not found: %s", idempotencyKey)
	}
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	return s.Attempts, nil
}

func (r *SettlementRepo) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]domain.SettlementRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: 1}}).
		SetLimit(int64(limit))
	cur, err := r.col.Find(ctx, bson.M{
		"status":     domain.SettlementStatusPending,
		"updated_at": bson.M{"$lt": olderThan},
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("list pending settlements: %w", err)
	}
	var out []domain.SettlementRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode pending settlements: %w", err)
	}
	return out, nil
}

func (r *SettlementRepo) List(ctx context.Context, filter domain.SettlementFilter) ([]domain.SettlementRecord, int64, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Kind != "" {
		query["kind"] = filter.Kind
	}

	total, err := r.col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count settlements: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(filter.Offset)).
		SetLimit(int64(limit))
	cur, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list settlements: %w", err)
	}
	var out []domain.SettlementRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("decode settlements: %w", err)
	}
	return out, total, nil
}

type settlementCount struct {
	ID struct {
		Status string `bson:"status"`
		Kind   string `bson:"kind"`
	} `bson:"_id"`
	Count int64 `bson:"count"`
}

// Stats groups counts server-side. Token volume is summed in Go because
// amounts are stored as decimal strings.
func (r *SettlementRepo) Stats(ctx context.Context) (*domain.SettlementStats, error) {
	stats := &domain.SettlementStats{
		ByStatus: map[domain.SettlementStatus]int64{},
		ByKind:   map[domain.SettlementKind]int64{},
	}

	cur, err := r.col.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "status", Value: "$status"}, {Key: "kind", Value: "$kind"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return nil, fmt.Errorf("settlement counts: %w", err)
	}
	var counts []settlementCount
	if err := cur.All(ctx, &counts); err != nil {
		return nil, fmt.Errorf("decode settlement counts: %w", err)
	}
	for _, c := range counts {
		stats.ByStatus[domain.SettlementStatus(c.ID.Status)] += c.Count
		stats.ByKind[domain.SettlementKind(c.ID.Kind)] += c.Count
	}

	cur, err = r.col.Find(ctx,
		bson.M{"status": domain.SettlementStatusConfirmed},
		options.Find().SetProjection(bson.M{"kind": 1, "token_amount": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("settlement volume: %w", err)
	}
	defer cur.Close(ctx)

	minted, burned := new(big.Int), new(big.Int)
	for cur.Next(ctx) {
		var s domain.SettlementRecord
		if err := cur.Decode(&s); err != nil {
			return nil, fmt.Errorf("decode settlement volume: %w", err)
		}
		amount, ok := s.ConfirmedTokens()
		if !ok {
			continue
		}
		if s.Kind == domain.SettlementKindMint {
			minted.Add(minted, amount)
		} else {
			burned.Add(burned, amount)
		}
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate settlement volume: %w", err)
	}
	stats.MintedTokens = minted.String()
	stats.BurnedTokens = burned.String()
	return stats, nil
}
