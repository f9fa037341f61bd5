package service

import (
	"context"
	"testing"
	"time"

	"fiat-token-bridge/internal/core/domain"
	"fiat-token-bridge/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestAuditService_Log_PersistsToRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())

	done := make(chan *domain.AuditLog, 1)
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.AuditLog) error {
			done <- entry
			return nil
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	svc.Log(ctx, &domain.AuditLog{
		Actor:        "ops",
		Action:       domain.AuditActionRetryPayout,
		ResourceType: "settlement",
		ResourceID:   "r1",
		IPAddress:    "127.0.0.1",
	})
	cancel() // request finished; persistence must still happen

	select {
	case entry := <-done:
		assert.Equal(t, domain.AuditActionRetryPayout, entry.Action)
		assert.NotEqual(t, uuid.Nil, entry.ID)
		assert.False(t, entry.CreatedAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("audit log not persisted in time")
	}
}

func TestAuditService_Log_NilRepo(t *testing.T) {
	svc := NewAuditService(nil, newTestLogger())

	assert.NotPanics(t, func() {
		svc.Log(context.Background(), &domain.AuditLog{
			Action:       domain.AuditActionOperatorLogin,
			ResourceType: "session",
			IPAddress:    "127.0.0.1",
		})
		time.Sleep(20 * time.Millisecond)
	})
}
