package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodsLifecycle(t *testing.T) {
	p := NewPeriods()

	_, ok := p.Current()
	assert.False(t, ok, "no period active before Start")

	pd, err := p.Start("2026-q1", "winter bracket")
	require.NoError(t, err)
	assert.Equal(t, "2026-q1", pd.ID)
	assert.Nil(t, pd.EndedAt)

	cur, ok := p.Current()
	require.True(t, ok)
	assert.Equal(t, "2026-q1", cur.ID)

	// States processed while the period is active get tagged with it.
	s := p.Tag(NewState())
	assert.Equal(t, "2026-q1", s.PeriodID)

	ended, err := p.End("2026-q1")
	require.NoError(t, err)
	require.NotNil(t, ended.EndedAt)
	assert.False(t, ended.EndedAt.Before(ended.StartedAt))

	_, ok = p.Current()
	assert.False(t, ok, "ending the current period leaves none active")

	// With no active period the tag passes states through untouched.
	s2 := p.Tag(NewState())
	assert.Empty(t, s2.PeriodID)
}

func TestPeriodsDuplicateAndMissing(t *testing.T) {
	p := NewPeriods()
	_, err := p.Start("2026-q1", "")
	require.NoError(t, err)

	_, err = p.Start("2026-q1", "again")
	assert.ErrorIs(t, err, ErrPeriodExists)

	_, err = p.End("2026-q2")
	assert.ErrorIs(t, err, ErrPeriodMissing)
}

func TestPeriodsListIsACopy(t *testing.T) {
	p := NewPeriods()
	_, err := p.Start("a", "")
	require.NoError(t, err)
	_, err = p.Start("b", "")
	require.NoError(t, err)

	list := p.List()
	require.Len(t, list, 2)
	list[0].ID = "mutated"

	again := p.List()
	assert.Equal(t, "a", again[0].ID)
}

func TestStartingNewPeriodSupersedesCurrent(t *testing.T) {
	p := NewPeriods()
	_, err := p.Start("a", "")
	require.NoError(t, err)
	_, err = p.Start("b", "")
	require.NoError(t, err)

	cur, ok := p.Current()
	require.True(t, ok)
	assert.Equal(t, "b", cur.ID)

	s := p.Tag(State{PeriodID: "a"})
	assert.Equal(t, "b", s.PeriodID)
}
