package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citypets/timesheet-engine/generic"
	"github.com/citypets/timesheet-engine/payroll"
	"github.com/citypets/timesheet-engine/store/memory"
	"github.com/citypets/timesheet-engine/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) payroll.TxStore {
		return memory.New()
	})
}

func TestMemoryStore_Reset(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	require.NoError(t, s.SaveProfile(ctx, payroll.NewProfile("ANNA")))
	_, err := s.AddHoliday(ctx, generic.MustParseDate("2025-12-25"))
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))

	profiles, err := s.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, profiles)
	holidays, err := s.ListHolidays(ctx)
	require.NoError(t, err)
	assert.Empty(t, holidays)
}
