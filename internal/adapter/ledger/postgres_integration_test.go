//go:build integration

package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/couchcryptid/safesea/internal/domain"
)

func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("safesea"),
		tcpostgres.WithUsername("safesea"),
		tcpostgres.WithPassword("safesea"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start postgres container")

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestPostgres_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	l, err := Open(ctx, "postgres", startPostgres(ctx, t), discardLogger())
	require.NoError(t, err)
	defer l.Close()

	at := time.Now().UTC().Truncate(time.Microsecond)
	a := testCheckin(uuid.NewString(), domain.RoleSailor, at)
	b := testCheckin(uuid.NewString(), domain.RoleDiver, at.Add(time.Second))

	require.NoError(t, l.RecordBatch(ctx, []domain.Checkin{a, b}))
	require.NoError(t, l.RecordBatch(ctx, []domain.Checkin{a}), "duplicate ignored")

	got, err := l.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, b.ID, got[0].ID)
	assert.True(t, a.CreatedAt.Equal(got[1].CreatedAt))
}
