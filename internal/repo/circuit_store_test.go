package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ampflux/internal/models"
)

func TestSaveVersionSequential(t *testing.T) {
	db := newStoreDB(t)
	projects := NewProjectStore(db)
	circuits := NewCircuitStore(db)
	owner := seedAccount(t, db, "Owner", "owner@a.test", "Tenant A", models.RoleCompanyAdmin)

	p, err := projects.Create(context.Background(), "Substation A", owner)
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		v, err := circuits.SaveVersion(context.Background(), p.ID, []byte(fmt.Sprintf(`{"rev":%d}`, i)))
		require.NoError(t, err)
		assert.Equal(t, i, v.VersionNumber)
	}

	list, err := circuits.ListVersions(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, list, 5)
	// newest first
	assert.Equal(t, 5, list[0].VersionNumber)
	assert.Equal(t, 1, list[4].VersionNumber)
}

func TestSaveVersionIndependentPerProject(t *testing.T) {
	db := newStoreDB(t)
	projects := NewProjectStore(db)
	circuits := NewCircuitStore(db)
	owner := seedAccount(t, db, "Owner", "owner@a.test", "Tenant A", models.RoleCompanyAdmin)

	p1, err := projects.Create(context.Background(), "First", owner)
	require.NoError(t, err)
	p2, err := projects.Create(context.Background(), "Second", owner)
	require.NoError(t, err)

	_, err = circuits.SaveVersion(context.Background(), p1.ID, []byte(`{}`))
	require.NoError(t, err)
	_, err = circuits.SaveVersion(context.Background(), p1.ID, []byte(`{}`))
	require.NoError(t, err)

	v, err := circuits.SaveVersion(context.Background(), p2.ID, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 1, v.VersionNumber)
}

func TestSaveVersionUnknownProject(t *testing.T) {
	db := newStoreDB(t)
	circuits := NewCircuitStore(db)

	_, err := circuits.SaveVersion(context.Background(), 12345, []byte(`{}`))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveVersionBumpsProjectTimestamp(t *testing.T) {
	db := newStoreDB(t)
	projects := NewProjectStore(db)
	circuits := NewCircuitStore(db)
	owner := seedAccount(t, db, "Owner", "owner@a.test", "Tenant A", models.RoleCompanyAdmin)

	p, err := projects.Create(context.Background(), "Substation A", owner)
	require.NoError(t, err)
	before := p.UpdatedAt

	time.Sleep(10 * time.Millisecond)
	_, err = circuits.SaveVersion(context.Background(), p.ID, []byte(`{}`))
	require.NoError(t, err)

	after, err := projects.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.After(before))
}

func TestSaveVersionConcurrentIsGapless(t *testing.T) {
	db := newFileDB(t)
	projects := NewProjectStore(db)
	circuits := NewCircuitStore(db)
	owner := seedAccount(t, db, "Owner", "owner@a.test", "Tenant A", models.RoleCompanyAdmin)

	p, err := projects.Create(context.Background(), "Substation A", owner)
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = circuits.SaveVersion(context.Background(), p.ID, []byte(`{}`))
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}

	list, err := circuits.ListVersions(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, list, n)

	got := make([]int, 0, n)
	for _, v := range list {
		got = append(got, v.VersionNumber)
	}
	sort.Ints(got)
	for i := 0; i < n; i++ {
		assert.Equal(t, i+1, got[i], "version numbers must be 1..N with no gaps")
	}
}

func TestSimulationLifecycle(t *testing.T) {
	db := newStoreDB(t)
	projects := NewProjectStore(db)
	circuits := NewCircuitStore(db)
	owner := seedAccount(t, db, "Owner", "owner@a.test", "Tenant A", models.RoleCompanyAdmin)

	p, err := projects.Create(context.Background(), "Substation A", owner)
	require.NoError(t, err)

	sim, err := circuits.CreateSimulation(context.Background(), p.ID, "task-abc")
	require.NoError(t, err)
	assert.Equal(t, models.SimulationPending, sim.Status)

	require.NoError(t, circuits.FinishSimulation(context.Background(), "task-abc",
		models.SimulationSuccess, []byte(`{"status":"ok","fault_current":2}`)))

	got, err := circuits.GetSimulationByTaskID(context.Background(), "task-abc")
	require.NoError(t, err)
	assert.Equal(t, models.SimulationSuccess, got.Status)
	assert.JSONEq(t, `{"status":"ok","fault_current":2}`, string(got.ResultJSON))

	list, err := circuits.ListSimulations(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = circuits.GetSimulationByTaskID(context.Background(), "no-such-task")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFinishSimulationUnknownTask(t *testing.T) {
	db := newStoreDB(t)
	circuits := NewCircuitStore(db)

	// a terminal result that matches no row must surface as an error, not
	// vanish silently
	err := circuits.FinishSimulation(context.Background(), "never-created",
		models.SimulationSuccess, []byte(`{"status":"ok"}`))
	assert.ErrorIs(t, err, ErrNotFound)
}
