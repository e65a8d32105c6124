package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type stubRepo struct {
	users map[string]*User
}

func (r *stubRepo) FindByUsername(ctx context.Context, username string) (*User, error) {
	if u, ok := r.users[username]; ok {
		return u, nil
	}
	return nil, ErrInvalidCredentials
}

func TestAuthenticate(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.DefaultCost)
	require.NoError(t, err)

	repo := &stubRepo{users: map[string]*User{
		"vendedor": {ID: 3, Username: "vendedor", PasswordHash: string(hashed), IsActive: true},
		"inactive": {ID: 4, Username: "inactive", PasswordHash: string(hashed), IsActive: false},
	}}
	svc := NewService(repo)
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, "vendedor", "correctpass")
	require.NoError(t, err)
	require.Equal(t, int64(3), user.ID)

	_, err = svc.Authenticate(ctx, "vendedor", "wrongpass")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "inactive", "correctpass")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "missing", "correctpass")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}
