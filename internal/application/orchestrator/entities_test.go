package orchestrator

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/nodecomp/internal/application/workers"
	"github.com/aescanero/nodecomp/pkg/domain"
	"github.com/aescanero/nodecomp/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateNodeFansOutPerInstance(t *testing.T) {
	tests := []struct {
		name string
		pool func(t *testing.T) *workers.Pool
	}{
		{name: "sequential", pool: func(t *testing.T) *workers.Pool { return nil }},
		{name: "worker pool", pool: func(t *testing.T) *workers.Pool { return startPool(t, 2) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, withPool(tt.pool(t)))
			f.seedChain(t)
			ctx := context.Background()

			for _, id := range []string{"i1", "i2"} {
				_, err := f.manager.CreateInstance(ctx, &domain.ServiceChainInstance{ID: id, SpecIDs: []string{"s1"}})
				require.NoError(t, err)
			}

			var mu sync.Mutex
			var updated []string
			f.fw.updateFunc = func(ctx context.Context, nc *ports.NodeContext) error {
				mu.Lock()
				defer mu.Unlock()
				assert.Equal(t, "v1", nc.OriginalNode.Config)
				assert.Equal(t, "v2", nc.CurrentNode.Config)
				assert.Equal(t, "p1", nc.OriginalProfile.ID)
				updated = append(updated, nc.Instance.ID)
				if nc.Instance.ID == "i1" {
					return &domain.NodeDriverError{Driver: "fw", NodeID: "n1", Err: assert.AnError}
				}
				return nil
			}

			config := "v2"
			node, err := f.manager.UpdateNode(ctx, "n1", domain.NodeUpdate{Config: &config})
			require.NoError(t, err, "per-instance driver failures are not returned")
			assert.Equal(t, "v2", node.Config)

			sort.Strings(updated)
			assert.Equal(t, []string{"i1", "i2"}, updated)
			assert.NotContains(t, f.log.all(), "update:lb:n2:i1")
		})
	}
}

func TestUpdateNodeNoDriverAvailable(t *testing.T) {
	f := newFixture(t)
	f.seedChain(t)
	ctx := context.Background()

	_, err := f.manager.CreateProfile(ctx, &domain.ServiceProfile{ID: "p3", ServiceType: "IDS"})
	require.NoError(t, err)
	_, err = f.manager.CreateInstance(ctx, &domain.ServiceChainInstance{ID: "i1", SpecIDs: []string{"s1"}})
	require.NoError(t, err)
	f.log.reset()

	profile := "p3"
	_, err = f.manager.UpdateNode(ctx, "n1", domain.NodeUpdate{ProfileID: &profile})

	var noDriver *domain.NoDriverAvailableError
	require.ErrorAs(t, err, &noDriver)
	assert.Equal(t, domain.ActionUpdate, noDriver.Action)
	assert.Equal(t, "n1", noDriver.NodeID)

	node, err := f.manager.GetNode(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "p1", node.ProfileID)
	assert.Empty(t, f.log.all())
}

func TestUpdateNodeWithoutInstances(t *testing.T) {
	f := newFixture(t)
	f.seedChain(t)

	config := "v2"
	node, err := f.manager.UpdateNode(context.Background(), "n1", domain.NodeUpdate{Config: &config})
	require.NoError(t, err)

	assert.Equal(t, "v2", node.Config)
	assert.Equal(t, []string{"s1"}, node.SpecIDs)
	assert.Empty(t, f.log.all())
}

func TestUpdateProfileInUse(t *testing.T) {
	f := newFixture(t)
	f.seedChain(t)
	ctx := context.Background()

	vendor := "acme"
	profile, err := f.manager.UpdateProfile(ctx, "p1", domain.ProfileUpdate{Vendor: &vendor})
	require.NoError(t, err, "profile without instances may change")
	assert.Equal(t, "acme", profile.Vendor)

	_, err = f.manager.CreateInstance(ctx, &domain.ServiceChainInstance{ID: "i1", SpecIDs: []string{"s1"}})
	require.NoError(t, err)

	vendor = "other"
	_, err = f.manager.UpdateProfile(ctx, "p1", domain.ProfileUpdate{Vendor: &vendor})

	var inUse *domain.ProfileInUseError
	require.ErrorAs(t, err, &inUse)
	assert.Equal(t, "i1", inUse.InstanceID)

	stored, err := f.manager.GetProfile(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "acme", stored.Vendor)
}

func TestUpdateSpecKeepsInstancesRunning(t *testing.T) {
	f := newFixture(t)
	f.seedChain(t)
	ctx := context.Background()

	_, err := f.manager.CreateInstance(ctx, &domain.ServiceChainInstance{ID: "i1", SpecIDs: []string{"s1"}})
	require.NoError(t, err)
	f.log.reset()

	nodes := []string{"n1"}
	spec, err := f.manager.UpdateSpec(ctx, "s1", domain.SpecUpdate{NodeIDs: &nodes})
	require.NoError(t, err)

	assert.Equal(t, []string{"n1"}, spec.NodeIDs)
	assert.Equal(t, []string{"i1"}, spec.InstanceIDs)
	assert.Empty(t, f.log.all())
}

func TestDeleteReferencedEntities(t *testing.T) {
	f := newFixture(t)
	f.seedChain(t)
	ctx := context.Background()

	_, err := f.manager.CreateInstance(ctx, &domain.ServiceChainInstance{ID: "i1", SpecIDs: []string{"s1"}})
	require.NoError(t, err)

	var inUse *domain.InUseError
	require.ErrorAs(t, f.manager.DeleteSpec(ctx, "s1"), &inUse)
	assert.Equal(t, domain.KindSpec, inUse.Kind)
	require.ErrorAs(t, f.manager.DeleteNode(ctx, "n1"), &inUse)
	assert.Equal(t, domain.KindNode, inUse.Kind)
	require.ErrorAs(t, f.manager.DeleteProfile(ctx, "p1"), &inUse)
	assert.Equal(t, domain.KindProfile, inUse.Kind)

	require.NoError(t, f.manager.DeleteInstance(ctx, "i1"))
	require.NoError(t, f.manager.DeleteSpec(ctx, "s1"))
	require.NoError(t, f.manager.DeleteNode(ctx, "n1"))
	require.NoError(t, f.manager.DeleteProfile(ctx, "p1"))

	_, err = f.manager.GetProfile(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, f.bus.types(), domain.EventTypeProfileDeleted)
}

func TestCreateReferencesMustExist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.CreateNode(ctx, &domain.ServiceChainNode{ProfileID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.manager.CreateSpec(ctx, &domain.ServiceChainSpec{NodeIDs: []string{"missing"}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var invalid *domain.ValidationError

	_, err := f.manager.CreateProfile(ctx, &domain.ServiceProfile{Name: "no type"})
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "service_type", invalid.Field)

	_, err = f.manager.CreateNode(ctx, &domain.ServiceChainNode{Name: "no profile"})
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "service_profile_id", invalid.Field)

	_, err = f.manager.CreateInstance(ctx, &domain.ServiceChainInstance{ConfigParamValues: "{broken"})
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "config_param_values", invalid.Field)
}

func TestTenantScoping(t *testing.T) {
	f := newFixture(t)
	tenantA := domain.WithCaller(context.Background(), domain.Caller{TenantID: "tenant-a"})
	tenantB := domain.WithCaller(context.Background(), domain.Caller{TenantID: "tenant-b"})

	private, err := f.manager.CreateProfile(tenantA, &domain.ServiceProfile{ID: "private", ServiceType: "FIREWALL"})
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", private.TenantID)

	_, err = f.manager.CreateProfile(tenantA, &domain.ServiceProfile{ID: "shared", ServiceType: "FIREWALL", Shared: true})
	require.NoError(t, err)

	t.Run("other tenant cannot see private entities", func(t *testing.T) {
		_, err := f.manager.GetProfile(tenantB, "private")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		profiles, err := f.manager.ListProfiles(tenantB)
		require.NoError(t, err)
		require.Len(t, profiles, 1)
		assert.Equal(t, "shared", profiles[0].ID)
	})

	t.Run("other tenant cannot reference private entities", func(t *testing.T) {
		_, err := f.manager.CreateNode(tenantB, &domain.ServiceChainNode{ProfileID: "private"})
		var sharingErr *domain.SharingError
		assert.ErrorAs(t, err, &sharingErr)
	})

	t.Run("other tenant cannot modify shared entities", func(t *testing.T) {
		name := "taken"
		_, err := f.manager.UpdateProfile(tenantB, "shared", domain.ProfileUpdate{Name: &name})
		var sharingErr *domain.SharingError
		assert.ErrorAs(t, err, &sharingErr)

		assert.ErrorAs(t, f.manager.DeleteProfile(tenantB, "shared"), &sharingErr)
	})

	t.Run("shared node needs shared profile", func(t *testing.T) {
		_, err := f.manager.CreateNode(tenantA, &domain.ServiceChainNode{ProfileID: "private", Shared: true})
		var sharingErr *domain.SharingError
		assert.ErrorAs(t, err, &sharingErr)
	})

	t.Run("non-admin cannot create for another tenant", func(t *testing.T) {
		_, err := f.manager.CreateProfile(tenantA, &domain.ServiceProfile{TenantID: "tenant-b", ServiceType: "FIREWALL"})
		var adminErr *domain.AdminRequiredError
		assert.ErrorAs(t, err, &adminErr)
	})

	t.Run("shared node of another tenant is usable", func(t *testing.T) {
		_, err := f.manager.CreateNode(tenantB, &domain.ServiceChainNode{ID: "b-node", ProfileID: "shared"})
		require.NoError(t, err)
	})
}

func TestUpdateNodeFanOutOutlivesCallerCancellation(t *testing.T) {
	pool := startPool(t, 1)
	f := newFixture(t, withPool(pool))
	f.seedChain(t)

	for _, id := range []string{"i1", "i2", "i3"} {
		_, err := f.manager.CreateInstance(context.Background(), &domain.ServiceChainInstance{ID: id, SpecIDs: []string{"s1"}})
		require.NoError(t, err)
	}
	f.log.reset()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.fw.updateFunc = func(_ context.Context, nc *ports.NodeContext) error {
		cancel()
		time.Sleep(50 * time.Millisecond)
		if nc.Instance.ID == "i2" {
			return &domain.NodeDriverError{Driver: "fw", NodeID: "n1", Err: assert.AnError}
		}
		return nil
	}

	config := "v2"
	_, err := f.manager.UpdateNode(ctx, "n1", domain.NodeUpdate{Config: &config})
	require.NoError(t, err)

	calls := f.log.all()
	sort.Strings(calls)
	assert.Equal(t, []string{"update:fw:n1:i1", "update:fw:n1:i2", "update:fw:n1:i3"}, calls)

	status := pool.Health().GetStatus()
	require.Len(t, status.RecentFailures, 1)
	assert.Equal(t, "i2", status.RecentFailures[0].InstanceID)
	assert.Equal(t, "fw", status.RecentFailures[0].Driver)
	assert.Zero(t, status.ActiveFanouts)
}

func TestScheduleNodeUpdateCarriesPlumbing(t *testing.T) {
	f := newFixture(t)
	f.seedChain(t)
	ctx := context.Background()

	_, err := f.manager.CreateInstance(ctx, &domain.ServiceChainInstance{ID: "i1", SpecIDs: []string{"s1"}})
	require.NoError(t, err)

	f.fw.plumbingFunc = func(nc *ports.NodeContext) domain.PlumbingInfo {
		return domain.PlumbingInfo{Management: []domain.PlumbingTarget{{Name: nc.CurrentNode.Config}}}
	}

	var batch []*ports.ScheduledOp
	err = f.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		original, err := tx.GetNode(ctx, "n1")
		if err != nil {
			return err
		}
		updated := original.Clone()
		updated.Config = "v2"
		batch, err = f.manager.scheduleNodeUpdate(ctx, tx, original, updated)
		return err
	})
	require.NoError(t, err)

	require.Len(t, batch, 1)
	assert.Equal(t, "i1", batch[0].Key)
	require.Len(t, batch[0].Plumbing.Management, 1)
	assert.Equal(t, "v2", batch[0].Plumbing.Management[0].Name)

	assert.IsType(t, &txChain{}, batch[0].Context.Chain)
	f.manager.release(batch)
	assert.Same(t, f.manager, batch[0].Context.Chain)
}

func TestEntityChecksRunAsNestedUnitOfWork(t *testing.T) {
	counter := &savepointStore{}
	f := newFixture(t, withStore(func(s ports.EntityStore) ports.EntityStore {
		counter.EntityStore = s
		return counter
	}))
	f.seedChain(t)
	assert.Equal(t, 3, counter.count(), "two nodes and one spec")

	_, err := f.manager.CreateInstance(context.Background(), &domain.ServiceChainInstance{ID: "i1", SpecIDs: []string{"s1"}})
	require.NoError(t, err)
	assert.Equal(t, 4, counter.count())

	_, err = f.manager.CreateInstance(context.Background(), &domain.ServiceChainInstance{ID: "i2", SpecIDs: []string{"missing"}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, []string{"i1"}, f.instanceIDs(t))
}
