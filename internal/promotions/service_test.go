package promotions

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
)

type memoryRepo struct {
	items map[int64]Promotion
	next  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[int64]Promotion{}}
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Promotion, int, error) {
	out := []Promotion{}
	for _, p := range m.items {
		if !filter.ActiveAt.IsZero() && !p.AppliesAt(filter.ActiveAt) {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Promotion, error) {
	p, ok := m.items[id]
	if !ok {
		return Promotion{}, ErrNotFound
	}
	return p, nil
}

func (m *memoryRepo) GetByCode(ctx context.Context, code string) (Promotion, error) {
	for _, p := range m.items {
		if strings.EqualFold(p.Code, code) {
			return p, nil
		}
	}
	return Promotion{}, ErrNotFound
}

func (m *memoryRepo) Create(ctx context.Context, in Input) (Promotion, error) {
	if _, err := m.GetByCode(ctx, in.Code); err == nil {
		return Promotion{}, ErrDuplicateCode
	}
	m.next++
	p := Promotion{ID: m.next, Code: in.Code, Name: in.Name, DiscountPercent: in.DiscountPercent, StartsAt: in.StartsAt, EndsAt: in.EndsAt, Active: in.Active}
	m.items[p.ID] = p
	return p, nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, in Input) (Promotion, error) {
	if _, ok := m.items[id]; !ok {
		return Promotion{}, ErrNotFound
	}
	p := Promotion{ID: id, Code: in.Code, Name: in.Name, DiscountPercent: in.DiscountPercent, StartsAt: in.StartsAt, EndsAt: in.EndsAt, Active: in.Active}
	m.items[id] = p
	return p, nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

var (
	windowStart = time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
)

func TestResolveWindow(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()
	_, err := svc.Create(ctx, Input{Code: " autumn10 ", Name: "Autumn", DiscountPercent: 10, StartsAt: windowStart, EndsAt: windowEnd, Active: true})
	require.NoError(t, err)

	p, err := svc.Resolve(ctx, "Autumn10", windowStart)
	require.NoError(t, err)
	require.Equal(t, "AUTUMN10", p.Code)
	require.Equal(t, 10.0, p.DiscountPercent)

	_, err = svc.Resolve(ctx, "AUTUMN10", windowEnd)
	require.ErrorIs(t, err, ErrNotApplicable)
	_, err = svc.Resolve(ctx, "AUTUMN10", windowStart.Add(-time.Second))
	require.ErrorIs(t, err, ErrNotApplicable)
	_, err = svc.Resolve(ctx, "SPRING", windowStart)
	require.ErrorIs(t, err, ErrNotApplicable)
	_, err = svc.Resolve(ctx, "  ", windowStart)
	require.ErrorIs(t, err, ErrNotApplicable)
}

func TestInactivePromotionDoesNotResolve(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()
	p, err := svc.Create(ctx, Input{Code: "STAFF", Name: "Staff", DiscountPercent: 20, StartsAt: windowStart, EndsAt: windowEnd, Active: false})
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, "STAFF", windowStart.Add(time.Hour))
	require.ErrorIs(t, err, ErrNotApplicable)

	_, err = svc.Update(ctx, p.ID, Input{Code: "STAFF", Name: "Staff", DiscountPercent: 20, StartsAt: windowStart, EndsAt: windowEnd, Active: true})
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, "STAFF", windowStart.Add(time.Hour))
	require.NoError(t, err)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()
	_, err := svc.Create(ctx, Input{Code: "ZERO", Name: "Zero", DiscountPercent: 0, StartsAt: windowStart, EndsAt: windowEnd})
	require.ErrorIs(t, err, httpx.ErrValidation)
	_, err = svc.Create(ctx, Input{Code: "HUGE", Name: "Huge", DiscountPercent: 101, StartsAt: windowStart, EndsAt: windowEnd})
	require.ErrorIs(t, err, httpx.ErrValidation)
	_, err = svc.Create(ctx, Input{Code: "BACK", Name: "Backwards", DiscountPercent: 5, StartsAt: windowEnd, EndsAt: windowStart})
	require.ErrorIs(t, err, httpx.ErrValidation)
}
