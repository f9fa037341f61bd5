package domain

import "time"

// PoolWallet is a custodial wallet held in the allocation pool.
type PoolWallet struct {
	Address         string     `json:"address" bson:"_id"`
	Allocated       bool       `json:"allocated" bson:"allocated"`
	DerivationIndex *uint32    `json:"derivation_index,omitempty" bson:"derivation_index,omitempty"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at"`
	AllocatedAt     *time.Time `json:"allocated_at,omitempty" bson:"allocated_at,omitempty"`
}

// IsAvailable returns true if the wallet can still be handed out.
func (w *PoolWallet) IsAvailable() bool {
	return !w.Allocated
}
