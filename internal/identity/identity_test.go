package identity

import (
	"context"
	"errors"
	"os/user"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/doselit/internal/constants"
)

func stubOSUser(t *testing.T, name string, err error) {
	t.Helper()
	old := currentOSUser
	t.Cleanup(func() { currentOSUser = old })
	currentOSUser = func() (*user.User, error) {
		if err != nil {
			return nil, err
		}
		return &user.User{Username: name}, nil
	}
}

func TestStatic(t *testing.T) {
	id, err := Static(" alice ").CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", id)

	_, err = Static("").CurrentUser(context.Background())
	assert.ErrorIs(t, err, ErrNoUser)
}

func TestResolveOrder(t *testing.T) {
	ctx := context.Background()
	stubOSUser(t, "osuser", nil)
	t.Setenv(constants.EnvUser, "envuser")

	id, err := Resolve("flaguser").CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "flaguser", id)

	id, err = Resolve("").CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "envuser", id)

	t.Setenv(constants.EnvUser, "")
	id, err = Resolve("").CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "osuser", id)
}

func TestNoIdentity(t *testing.T) {
	stubOSUser(t, "", errors.New("unknown userid"))
	t.Setenv(constants.EnvUser, "")
	_, err := Resolve("").CurrentUser(context.Background())
	assert.ErrorIs(t, err, ErrNoUser)
}
