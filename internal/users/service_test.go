package users

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/shared"
)

type memoryRepo struct {
	users  map[int64]User
	hashes map[int64]string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: map[int64]User{}, hashes: map[int64]string{}}
}

func (m *memoryRepo) List(ctx context.Context, filter shared.ListFilters) ([]User, int, error) {
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memoryRepo) Create(ctx context.Context, in CreateInput, hash string) (User, error) {
	for _, u := range m.users {
		if u.Email == in.Email {
			return User{}, ErrDuplicateEmail
		}
	}
	id := int64(len(m.users) + 1)
	m.users[id] = User{ID: id, Email: in.Email, Name: in.Name, RoleID: in.RoleID, IsActive: true}
	m.hashes[id] = hash
	return m.users[id], nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, in UpdateInput) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	u.Name, u.RoleID, u.IsActive = in.Name, in.RoleID, in.IsActive
	m.users[id] = u
	return u, nil
}

func (m *memoryRepo) SetPassword(ctx context.Context, id int64, hash string) error {
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	m.hashes[id] = hash
	return nil
}

func newTestService(repo RepositoryPort) *Service {
	svc := NewService(repo, nil)
	svc.cost = bcrypt.MinCost
	return svc
}

func TestCreateHashesPassword(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	u, err := svc.Create(context.Background(), CreateInput{Email: " Cashier@Shop.Test ", Name: "Dana", Password: "supersecret"})
	require.NoError(t, err)
	require.Equal(t, "cashier@shop.test", u.Email)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.hashes[u.ID]), []byte("supersecret")))

	_, err = svc.Create(context.Background(), CreateInput{Email: "cashier@shop.test", Name: "Dup", Password: "supersecret"})
	require.ErrorIs(t, err, ErrDuplicateEmail)
	require.Equal(t, "A user with this email already exists", shared.UserSafeMessage(err))
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.Create(context.Background(), CreateInput{Email: "not-an-email", Name: "", Password: "short"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	var fields httpx.FieldErrors
	require.True(t, errors.As(err, &fields))
	require.Contains(t, fields, "Email")
	require.Contains(t, fields, "Name")
	require.Contains(t, fields, "Password")
}

func TestUpdateRejectsSelfDeactivation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	u, err := svc.Create(context.Background(), CreateInput{Email: "admin@shop.test", Name: "Admin", Password: "supersecret"})
	require.NoError(t, err)

	sess := &shared.Session{}
	sess.SetUser(u.ID)
	ctx := shared.ContextWithSession(context.Background(), sess)

	_, err = svc.Update(ctx, u.ID, UpdateInput{Name: "Admin", IsActive: false})
	require.ErrorIs(t, err, ErrSelfDeactivate)

	updated, err := svc.Update(context.Background(), u.ID, UpdateInput{Name: "Admin Two", IsActive: false})
	require.NoError(t, err)
	require.False(t, updated.IsActive)
}

func TestResetPassword(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	u, err := svc.Create(context.Background(), CreateInput{Email: "a@shop.test", Name: "A", Password: "supersecret"})
	require.NoError(t, err)

	require.NoError(t, svc.ResetPassword(context.Background(), u.ID, PasswordInput{Password: "anothersecret"}))
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.hashes[u.ID]), []byte("anothersecret")))
	require.ErrorIs(t, svc.ResetPassword(context.Background(), 99, PasswordInput{Password: "anothersecret"}), ErrNotFound)
}
