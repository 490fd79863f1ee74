package keyring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gokeyring "github.com/zalando/go-keyring"

	"github.com/julianstephens/doselit/internal/constants"
)

func TestSetGetDelete(t *testing.T) {
	gokeyring.MockInit()

	conn := "postgres://doselit@localhost:5432/doselit?sslmode=disable"
	require.NoError(t, SetConnectionString(conn))

	got, err := GetConnectionString()
	require.NoError(t, err)
	assert.Equal(t, conn, got)

	require.NoError(t, DeleteConnectionString())
	_, err = GetConnectionString()
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, DeleteConnectionString(), ErrNotFound)
}

func TestSetEmpty(t *testing.T) {
	gokeyring.MockInit()
	assert.Error(t, SetConnectionString("  "))
}

func TestIsAvailable(t *testing.T) {
	gokeyring.MockInit()
	assert.True(t, IsAvailable())
}

func TestResolveConnection(t *testing.T) {
	gokeyring.MockInit()
	_ = DeleteConnectionString()
	t.Setenv(constants.EnvDBConnection, "")

	got, src := ResolveConnection("/tmp/doselit.db")
	assert.Equal(t, "/tmp/doselit.db", got)
	assert.Equal(t, SourceFlag, src)

	require.NoError(t, SetConnectionString("postgres://kr@localhost/doselit"))
	got, src = ResolveConnection("/tmp/doselit.db")
	assert.Equal(t, "postgres://kr@localhost/doselit", got)
	assert.Equal(t, SourceKeyring, src)

	t.Setenv(constants.EnvDBConnection, "postgres://env@localhost/doselit")
	got, src = ResolveConnection("/tmp/doselit.db")
	assert.Equal(t, "postgres://env@localhost/doselit", got)
	assert.Equal(t, SourceEnv, src)
}
