package numerator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock objects
type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier keeps one counter per (user, key), like the upsert does.
type mockQuerier struct {
	mu       sync.Mutex
	counters map[string]int64
	err      error
}

func (m *mockQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return &mockRow{err: m.err}
	}
	if m.counters == nil {
		m.counters = make(map[string]int64)
	}
	k := args[0].(string) + "|" + args[1].(string)
	m.counters[k]++
	return &mockRow{val: m.counters[k]}
}

func newService(q *mockQuerier, cfg Config) *Service {
	return New(func(context.Context) Querier { return q }, cfg)
}

func TestNext_SequentialPerUserAndYear(t *testing.T) {
	q := &mockQuerier{}
	svc := newService(q, DefaultConfig("V"))
	ctx := context.Background()
	march := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	first, err := svc.Next(ctx, "user-1", march)
	require.NoError(t, err)
	second, err := svc.Next(ctx, "user-1", march)
	require.NoError(t, err)
	other, err := svc.Next(ctx, "user-2", march)
	require.NoError(t, err)
	nextYear, err := svc.Next(ctx, "user-1", march.AddDate(1, 0, 0))
	require.NoError(t, err)

	assert.Equal(t, "V-2024-00001", first)
	assert.Equal(t, "V-2024-00002", second)
	assert.Equal(t, "V-2024-00001", other)
	assert.Equal(t, "V-2025-00001", nextYear)
}

func TestNext_PropagatesErrors(t *testing.T) {
	svc := newService(&mockQuerier{err: errors.New("conn reset")}, DefaultConfig("V"))

	_, err := svc.Next(context.Background(), "user-1", time.Now())

	assert.ErrorContains(t, err, "conn reset")
}

func TestKeyAndFormat(t *testing.T) {
	at := time.Date(2024, 11, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		cfg     Config
		wantKey string
		wantNum string
	}{
		{"yearly", DefaultConfig("V"), "V_2024", "V-2024-00042"},
		{"monthly", Config{Prefix: "R", ResetPeriod: "month", PadWidth: 3}, "R_2024_11", "R-042"},
		{"never", Config{Prefix: "X", IncludeYear: true}, "X", "X-2024-00042"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantKey, Key(tt.cfg, at))
			assert.Equal(t, tt.wantNum, Format(tt.cfg, at, 42))
		})
	}
}
