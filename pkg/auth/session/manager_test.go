package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/google/uuid"
)

type mockStore struct {
	mu        sync.Mutex
	data      map[string]string
	ttls      map[string]time.Duration
	existsErr error
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (m *mockStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *mockStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.data[key]
	return ok, nil
}

func (m *mockStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *mockStore) AccessSessionKey(accessID string) string {
	return "sess:" + accessID
}

func mustManager(t *testing.T, s store, ttl time.Duration) *Manager {
	t.Helper()
	m, err := newManager(s, ttl)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestManagerRegisterAndRevoke(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	manager := mustManager(t, store, time.Hour)

	accessID := NewAccessID()
	userID := uuid.New()
	if err := manager.Register(ctx, accessID, userID); err != nil {
		t.Fatalf("register: %v", err)
	}
	if store.data["sess:"+accessID] != userID.String() {
		t.Fatalf("expected user id stored, got %q", store.data["sess:"+accessID])
	}
	if store.ttls["sess:"+accessID] != time.Hour {
		t.Fatalf("expected ttl to follow token lifetime, got %v", store.ttls["sess:"+accessID])
	}

	ok, err := manager.HasSession(ctx, accessID)
	if err != nil || !ok {
		t.Fatalf("expected live session, ok=%v err=%v", ok, err)
	}

	if err := manager.Revoke(ctx, accessID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ok, err = manager.HasSession(ctx, accessID)
	if err != nil || ok {
		t.Fatalf("expected revoked session, ok=%v err=%v", ok, err)
	}
}

func TestManagerRejectsBlankInput(t *testing.T) {
	manager := mustManager(t, newMockStore(), time.Minute)
	ctx := context.Background()

	if err := manager.Register(ctx, " ", uuid.New()); !errors.Is(err, errBlankAccessID) {
		t.Fatalf("expected blank access id error, got %v", err)
	}
	if err := manager.Register(ctx, "jti", uuid.Nil); err == nil {
		t.Fatal("expected missing user error")
	}
	if err := manager.Revoke(ctx, ""); !errors.Is(err, errBlankAccessID) {
		t.Fatalf("expected blank access id error, got %v", err)
	}
	if _, err := manager.HasSession(ctx, ""); !errors.Is(err, errBlankAccessID) {
		t.Fatalf("expected blank access id error, got %v", err)
	}
}

func TestManagerHasSessionPropagatesStoreErrors(t *testing.T) {
	store := newMockStore()
	store.existsErr = errors.New("connection refused")
	manager := mustManager(t, store, time.Minute)

	if _, err := manager.HasSession(context.Background(), "abc"); err == nil {
		t.Fatal("expected store error")
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(nil, config.JWTConfig{ExpirationMinutes: 5}); err == nil {
		t.Fatal("expected nil client error")
	}
	if _, err := newManager(newMockStore(), 0); err == nil {
		t.Fatal("expected ttl error")
	}
}
