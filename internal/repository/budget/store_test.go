package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/polyqa/internal/db"
)

// --- Mocks ---

type expireCall struct {
	key string
	ttl time.Duration
	nx  bool
}

type mockKV struct {
	data      map[string][]byte
	incrs     map[string]int64
	expires   []expireCall
	getErr    error
	incrErr   error
	expireErr error
}

func newMockKV() *mockKV {
	return &mockKV{data: map[string][]byte{}, incrs: map[string]int64{}}
}

func (m *mockKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKV) IncrBy(_ context.Context, key string, val int64) error {
	if m.incrErr != nil {
		return m.incrErr
	}
	m.incrs[key] += val
	return nil
}

func (m *mockKV) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	m.expires = append(m.expires, expireCall{key: key, ttl: ttl, nx: nx})
	return m.expireErr
}

// --- Tests ---

func TestStore_Get_Missing(t *testing.T) {
	s := New(newMockKV(), 0, 0)

	val, err := s.Get(context.Background(), "polyqa:budget:completion:openai:daily:2026-01-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 0 {
		t.Errorf("expected 0, got %d", val)
	}
}

func TestStore_Get_Parses(t *testing.T) {
	kv := newMockKV()
	kv.data["k"] = []byte("1234")
	s := New(kv, 0, 0)

	val, err := s.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 1234 {
		t.Errorf("expected 1234, got %d", val)
	}
}

func TestStore_Get_Garbage(t *testing.T) {
	kv := newMockKV()
	kv.data["k"] = []byte("abc")
	s := New(kv, 0, 0)

	if _, err := s.Get(context.Background(), "k"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestStore_Get_BackendError(t *testing.T) {
	kv := newMockKV()
	kv.getErr = errors.New("connection refused")
	s := New(kv, 0, 0)

	if _, err := s.Get(context.Background(), "k"); err == nil {
		t.Fatal("expected error")
	}
}

func TestStore_IncrBy_TTLByPeriod(t *testing.T) {
	kv := newMockKV()
	s := New(kv, time.Hour, 2*time.Hour)
	ctx := context.Background()

	daily := "polyqa:budget:completion:openai:daily:2026-01-01"
	monthly := "polyqa:budget:completion:openai:monthly:2026-01"
	if err := s.IncrBy(ctx, daily, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.IncrBy(ctx, monthly, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if kv.incrs[daily] != 10 || kv.incrs[monthly] != 10 {
		t.Fatalf("unexpected increments: %v", kv.incrs)
	}
	if len(kv.expires) != 2 {
		t.Fatalf("expected 2 expire calls, got %d", len(kv.expires))
	}
	if kv.expires[0].ttl != time.Hour || !kv.expires[0].nx {
		t.Errorf("daily expire = %+v", kv.expires[0])
	}
	if kv.expires[1].ttl != 2*time.Hour || !kv.expires[1].nx {
		t.Errorf("monthly expire = %+v", kv.expires[1])
	}
}

func TestStore_IncrBy_Errors(t *testing.T) {
	kv := newMockKV()
	kv.incrErr = errors.New("boom")
	s := New(kv, 0, 0)

	if err := s.IncrBy(context.Background(), "k:daily:x", 1); err == nil {
		t.Fatal("expected incr error")
	}
	if len(kv.expires) != 0 {
		t.Error("expire must not run after a failed incr")
	}

	kv.incrErr = nil
	kv.expireErr = errors.New("boom")
	if err := s.IncrBy(context.Background(), "k:daily:x", 1); err == nil {
		t.Fatal("expected expire error")
	}
}

func TestNew_DefaultTTLs(t *testing.T) {
	s := New(newMockKV(), 0, -1)

	if s.dailyTTL != DefaultDailyTTL {
		t.Errorf("dailyTTL = %v", s.dailyTTL)
	}
	if s.monthTTL != DefaultMonthlyTTL {
		t.Errorf("monthTTL = %v", s.monthTTL)
	}
}
