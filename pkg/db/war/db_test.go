package war

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Compile-time check that the concrete DB satisfies the Store contract.
var _ Store = (*DB)(nil)

// The write paths short-circuit on empty input before touching the
// connection, so a zero-value DB is enough to exercise them.

func TestUpsertParticipations_EmptyIsNoop(t *testing.T) {
	db := &DB{Name: DatabaseName}
	require.NoError(t, db.UpsertParticipations(context.Background(), nil))
}

func TestUpsertDailies_EmptyIsNoop(t *testing.T) {
	db := &DB{Name: DatabaseName}
	require.NoError(t, db.UpsertDailies(context.Background(), time.Now(), nil))
}

func TestUpsertMemberDailies_EmptyIsNoop(t *testing.T) {
	db := &DB{Name: DatabaseName}
	require.NoError(t, db.UpsertMemberDailies(context.Background(), "#CLAN", time.Now(), nil))
}

func TestInactivePlayers_ZeroAllowanceIsEmpty(t *testing.T) {
	db := &DB{Name: DatabaseName}

	rows, err := db.InactivePlayers(context.Background(), 107, 2, 0)
	require.NoError(t, err)
	require.Empty(t, rows)
}
