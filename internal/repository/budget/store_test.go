package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/campushq/coursedex/internal/db"
)

type fakeKV struct {
	values  map[string][]byte
	incrs   map[string]int64
	expires map[string]time.Duration
	nxFlags map[string]bool

	getErr    error
	incrErr   error
	expireErr error
}

func newFakeKV() *fakeKV {
	return &fakeKV{
		values:  make(map[string][]byte),
		incrs:   make(map[string]int64),
		expires: make(map[string]time.Duration),
		nxFlags: make(map[string]bool),
	}
}

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeKV) IncrBy(_ context.Context, key string, val int64) error {
	if f.incrErr != nil {
		return f.incrErr
	}
	f.incrs[key] += val
	return nil
}

func (f *fakeKV) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	if f.expireErr != nil {
		return f.expireErr
	}
	f.expires[key] = ttl
	f.nxFlags[key] = nx
	return nil
}

const (
	dailyKey   = "coursedex:budget:test:daily:2026-08-29"
	monthlyKey = "coursedex:budget:test:monthly:2026-08"
)

func TestIncrBy(t *testing.T) {
	kv := newFakeKV()
	s := New(kv, 48*time.Hour, 62*24*time.Hour)

	if err := s.IncrBy(context.Background(), dailyKey, 42); err != nil {
		t.Fatalf("IncrBy: %v", err)
	}

	if kv.incrs[dailyKey] != 42 {
		t.Errorf("counter = %d, want 42", kv.incrs[dailyKey])
	}
	if kv.expires[dailyKey] != 48*time.Hour {
		t.Errorf("daily ttl = %v, want 48h", kv.expires[dailyKey])
	}
	if !kv.nxFlags[dailyKey] {
		t.Error("expire must use NX so repeated increments keep the original expiry")
	}
}

func TestIncrBy_MonthlyTTL(t *testing.T) {
	kv := newFakeKV()
	s := New(kv, 48*time.Hour, 62*24*time.Hour)

	if err := s.IncrBy(context.Background(), monthlyKey, 10); err != nil {
		t.Fatalf("IncrBy: %v", err)
	}
	if kv.expires[monthlyKey] != 62*24*time.Hour {
		t.Errorf("monthly ttl = %v, want 62 days", kv.expires[monthlyKey])
	}
}

func TestIncrBy_Errors(t *testing.T) {
	kv := newFakeKV()
	kv.incrErr = errors.New("down")
	s := New(kv, time.Hour, time.Hour)
	if err := s.IncrBy(context.Background(), dailyKey, 1); err == nil {
		t.Error("expected INCRBY error")
	}

	kv = newFakeKV()
	kv.expireErr = errors.New("down")
	s = New(kv, time.Hour, time.Hour)
	if err := s.IncrBy(context.Background(), dailyKey, 1); err == nil {
		t.Error("expected EXPIRE error")
	}
}

func TestGet(t *testing.T) {
	kv := newFakeKV()
	kv.values[dailyKey] = []byte("1234")
	s := New(kv, time.Hour, time.Hour)

	val, err := s.Get(context.Background(), dailyKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != 1234 {
		t.Errorf("Get = %d, want 1234", val)
	}
}

func TestGet_MissingKeyIsZero(t *testing.T) {
	s := New(newFakeKV(), time.Hour, time.Hour)
	val, err := s.Get(context.Background(), dailyKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != 0 {
		t.Errorf("missing key = %d, want 0", val)
	}
}

func TestGet_Errors(t *testing.T) {
	kv := newFakeKV()
	kv.getErr = errors.New("down")
	s := New(kv, time.Hour, time.Hour)
	if _, err := s.Get(context.Background(), dailyKey); err == nil {
		t.Error("expected store error to propagate")
	}

	kv = newFakeKV()
	kv.values[dailyKey] = []byte("not-a-number")
	s = New(kv, time.Hour, time.Hour)
	if _, err := s.Get(context.Background(), dailyKey); err == nil {
		t.Error("expected parse error")
	}
}
