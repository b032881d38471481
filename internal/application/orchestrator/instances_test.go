package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aescanero/nodecomp/pkg/domain"
	"github.com/aescanero/nodecomp/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInstancePlugsBeforeCreatingNodes(t *testing.T) {
	f := newFixture(t)
	f.seedChain(t)

	instance, err := f.manager.CreateInstance(context.Background(), &domain.ServiceChainInstance{
		ID:      "i1",
		Name:    "web-chain",
		SpecIDs: []string{"s1"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.InstanceStatusActive, instance.Status)
	assert.Equal(t, []string{"plug:n1,n2", "create:fw:n1", "create:lb:n2"}, f.log.all())
	assert.Equal(t, []string{"i1"}, f.instanceIDs(t))
	assert.Contains(t, f.bus.types(), domain.EventTypeInstanceCreated)
}

func TestCreateInstanceWithoutSpec(t *testing.T) {
	f := newFixture(t)

	instance, err := f.manager.CreateInstance(context.Background(), &domain.ServiceChainInstance{Name: "empty"})
	require.NoError(t, err)

	assert.NotEmpty(t, instance.ID)
	assert.Equal(t, domain.InstanceStatusActive, instance.Status)
	assert.Equal(t, []string{"plug:"}, f.log.all())
}

func TestCreateInstanceTooManySpecs(t *testing.T) {
	f := newFixture(t)
	f.seedChain(t)
	_, err := f.manager.CreateSpec(context.Background(), &domain.ServiceChainSpec{ID: "s2", NodeIDs: []string{"n1"}})
	require.NoError(t, err)
	f.log.reset()

	_, err = f.manager.CreateInstance(context.Background(), &domain.ServiceChainInstance{
		ID:      "i1",
		SpecIDs: []string{"s1", "s2"},
	})

	var tooMany *domain.TooManySpecsError
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, 2, tooMany.Count)
	assert.Empty(t, f.instanceIDs(t))
	assert.Empty(t, f.log.all())
}

func TestCreateInstanceUnknownSpec(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.CreateInstance(context.Background(), &domain.ServiceChainInstance{SpecIDs: []string{"missing"}})

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, f.instanceIDs(t))
}

func TestCreateInstanceNoDriverAvailable(t *testing.T) {
	f := newFixture(t, withoutLoadBalancerDriver())
	f.seedChain(t)

	_, err := f.manager.CreateInstance(context.Background(), &domain.ServiceChainInstance{
		ID:      "i1",
		SpecIDs: []string{"s1"},
	})

	var noDriver *domain.NoDriverAvailableError
	require.ErrorAs(t, err, &noDriver)
	assert.Equal(t, domain.ActionDeploy, noDriver.Action)
	assert.Equal(t, "n2", noDriver.NodeID)
	assert.Empty(t, f.instanceIDs(t))
	assert.Empty(t, f.log.all(), "no plumbing or driver call may happen")
}

func TestCreateInstanceCompensatesDriverFailure(t *testing.T) {
	f := newFixture(t)
	f.seedChain(t)

	driverErr := &domain.NodeDriverError{Driver: "lb", NodeID: "n2", Err: assert.AnError}
	f.lb.createFunc = func(ctx context.Context, nc *ports.NodeContext) error {
		return driverErr
	}

	_, err := f.manager.CreateInstance(context.Background(), &domain.ServiceChainInstance{
		ID:      "i1",
		SpecIDs: []string{"s1"},
	})

	assert.Same(t, driverErr, err)
	assert.Equal(t, []string{
		"plug:n1,n2",
		"create:fw:n1",
		"create:lb:n2",
		"delete:fw:n1",
		"delete:lb:n2",
		"unplug:n1,n2",
	}, f.log.all())
	assert.Empty(t, f.instanceIDs(t))
	assert.Contains(t, f.bus.types(), domain.EventTypeInstanceFailed)
	assert.NotContains(t, f.bus.types(), domain.EventTypeInstanceCreated)
}

func TestCreateInstanceCompensatesPlumbingFailure(t *testing.T) {
	f := newFixture(t)
	f.seedChain(t)
	f.plumber.plugErr = assert.AnError

	_, err := f.manager.CreateInstance(context.Background(), &domain.ServiceChainInstance{
		ID:      "i1",
		SpecIDs: []string{"s1"},
	})

	assert.ErrorIs(t, err, assert.AnError)
	assert.NotContains(t, f.log.all(), "create:fw:n1")
	assert.Empty(t, f.instanceIDs(t))
}

func TestDriverReadsChainThroughContext(t *testing.T) {
	f := newFixture(t)
	f.seedChain(t)

	var seen *domain.ServiceChainInstance
	f.fw.createFunc = func(ctx context.Context, nc *ports.NodeContext) error {
		var err error
		seen, err = nc.Chain.GetInstance(ctx, nc.Instance.ID)
		return err
	}

	_, err := f.manager.CreateInstance(context.Background(), &domain.ServiceChainInstance{
		ID:      "i1",
		SpecIDs: []string{"s1"},
	})
	require.NoError(t, err)

	require.NotNil(t, seen)
	assert.Equal(t, domain.InstanceStatusBuild, seen.Status)
}

func TestDeleteInstanceContinuesPastDriverFailures(t *testing.T) {
	f := newFixture(t)
	f.seedChain(t)
	ctx := context.Background()

	_, err := f.manager.CreateInstance(ctx, &domain.ServiceChainInstance{ID: "i1", SpecIDs: []string{"s1"}})
	require.NoError(t, err)
	f.log.reset()

	f.fw.deleteFunc = func(ctx context.Context, nc *ports.NodeContext) error {
		return &domain.NodeDriverError{Driver: "fw", NodeID: "n1", Err: assert.AnError}
	}
	f.lb.deleteFunc = func(ctx context.Context, nc *ports.NodeContext) error {
		panic("boom")
	}

	require.NoError(t, f.manager.DeleteInstance(ctx, "i1"))

	assert.Equal(t, []string{"delete:fw:n1", "delete:lb:n2", "unplug:n1,n2"}, f.log.all())
	assert.Empty(t, f.instanceIDs(t))
	assert.Contains(t, f.bus.types(), domain.EventTypeInstanceDeleted)

	err = f.manager.DeleteInstance(ctx, "i1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteInstanceUnexpectedError(t *testing.T) {
	f := newFixture(t)
	f.seedChain(t)
	ctx := context.Background()

	_, err := f.manager.CreateInstance(ctx, &domain.ServiceChainInstance{ID: "i1", SpecIDs: []string{"s1"}})
	require.NoError(t, err)

	f.fw.deleteFunc = func(ctx context.Context, nc *ports.NodeContext) error {
		return errors.New("connection reset")
	}

	require.NoError(t, f.manager.DeleteInstance(ctx, "i1"))
	assert.Empty(t, f.instanceIDs(t))
}

func TestUpdateInstanceSwapsSpec(t *testing.T) {
	f := newFixture(t)
	f.seedChain(t)
	ctx := context.Background()

	_, err := f.manager.CreateNode(ctx, &domain.ServiceChainNode{ID: "n3", ProfileID: "p1"})
	require.NoError(t, err)
	_, err = f.manager.CreateSpec(ctx, &domain.ServiceChainSpec{ID: "s2", NodeIDs: []string{"n3"}})
	require.NoError(t, err)
	_, err = f.manager.CreateInstance(ctx, &domain.ServiceChainInstance{ID: "i1", SpecIDs: []string{"s1"}})
	require.NoError(t, err)
	f.log.reset()

	specs := []string{"s2"}
	updated, err := f.manager.UpdateInstance(ctx, "i1", domain.InstanceUpdate{SpecIDs: &specs})
	require.NoError(t, err)

	assert.Equal(t, []string{"s2"}, updated.SpecIDs)
	assert.Equal(t, domain.InstanceStatusActive, updated.Status)
	assert.Equal(t, []string{
		"delete:fw:n1",
		"delete:lb:n2",
		"unplug:n1,n2",
		"plug:n3",
		"create:fw:n3",
	}, f.log.all())
}

func TestUpdateInstanceWithoutSpecChange(t *testing.T) {
	f := newFixture(t)
	f.seedChain(t)
	ctx := context.Background()

	_, err := f.manager.CreateInstance(ctx, &domain.ServiceChainInstance{ID: "i1", SpecIDs: []string{"s1"}})
	require.NoError(t, err)
	f.log.reset()

	name := "renamed"
	updated, err := f.manager.UpdateInstance(ctx, "i1", domain.InstanceUpdate{Name: &name})
	require.NoError(t, err)

	assert.Equal(t, "renamed", updated.Name)
	assert.Empty(t, f.log.all())
}

func TestUpdateInstanceDeployFailureMarksError(t *testing.T) {
	f := newFixture(t)
	f.seedChain(t)
	ctx := context.Background()

	_, err := f.manager.CreateNode(ctx, &domain.ServiceChainNode{ID: "n3", ProfileID: "p1"})
	require.NoError(t, err)
	_, err = f.manager.CreateSpec(ctx, &domain.ServiceChainSpec{ID: "s2", NodeIDs: []string{"n3"}})
	require.NoError(t, err)
	_, err = f.manager.CreateInstance(ctx, &domain.ServiceChainInstance{ID: "i1", SpecIDs: []string{"s1"}})
	require.NoError(t, err)

	f.fw.createFunc = func(ctx context.Context, nc *ports.NodeContext) error {
		return &domain.NodeDriverError{Driver: "fw", NodeID: nc.CurrentNode.ID, Err: assert.AnError}
	}

	specs := []string{"s2"}
	_, err = f.manager.UpdateInstance(ctx, "i1", domain.InstanceUpdate{SpecIDs: &specs})
	require.Error(t, err)

	stored, err := f.manager.GetInstance(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, stored.SpecIDs)
	assert.Equal(t, domain.InstanceStatusError, stored.Status)
	assert.Contains(t, stored.StatusDetails, "driver fw failed on node n3")
}

func TestUpdateInstanceTooManySpecs(t *testing.T) {
	f := newFixture(t)
	f.seedChain(t)
	ctx := context.Background()

	_, err := f.manager.CreateSpec(ctx, &domain.ServiceChainSpec{ID: "s2", NodeIDs: []string{"n1"}})
	require.NoError(t, err)
	_, err = f.manager.CreateInstance(ctx, &domain.ServiceChainInstance{ID: "i1", SpecIDs: []string{"s1"}})
	require.NoError(t, err)
	f.log.reset()

	specs := []string{"s1", "s2"}
	_, err = f.manager.UpdateInstance(ctx, "i1", domain.InstanceUpdate{SpecIDs: &specs})

	var tooMany *domain.TooManySpecsError
	require.ErrorAs(t, err, &tooMany)
	stored, err := f.manager.GetInstance(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, stored.SpecIDs)
	assert.Empty(t, f.log.all())
}

func TestScheduleInstanceIsRepeatable(t *testing.T) {
	f := newFixture(t)
	f.seedChain(t)
	ctx := context.Background()

	_, err := f.manager.CreateSpec(ctx, &domain.ServiceChainSpec{ID: "s2", NodeIDs: []string{"n1", "n2", "n1"}})
	require.NoError(t, err)

	instance := &domain.ServiceChainInstance{ID: "i1", SpecIDs: []string{"s2"}}
	err = f.store.RunInTransaction(ctx, func(tx ports.Tx) error {
		first, err := f.manager.scheduleInstance(ctx, tx, domain.ActionDeploy, instance)
		require.NoError(t, err)
		second, err := f.manager.scheduleInstance(ctx, tx, domain.ActionDeploy, instance)
		require.NoError(t, err)

		assert.Equal(t, "n1,n2", keys(first))
		assert.Equal(t, keys(first), keys(second))
		for i := range first {
			assert.Equal(t, first[i].Driver.Name(), second[i].Driver.Name())
		}
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, f.log.all())
}

func TestInstanceVisibility(t *testing.T) {
	f := newFixture(t)
	f.seedChain(t)

	_, err := f.manager.CreateInstance(context.Background(), &domain.ServiceChainInstance{
		ID:       "i1",
		TenantID: "tenant-a",
		SpecIDs:  []string{"s1"},
	})
	require.NoError(t, err)

	other := domain.WithCaller(context.Background(), domain.Caller{TenantID: "tenant-b"})
	_, err = f.manager.GetInstance(other, "i1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.manager.DeleteInstance(other, "i1"), domain.ErrNotFound)

	instances, err := f.manager.ListInstances(other)
	require.NoError(t, err)
	assert.Empty(t, instances)

	owner := domain.WithCaller(context.Background(), domain.Caller{TenantID: "tenant-a"})
	instances, err = f.manager.ListInstances(owner)
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "i1", instances[0].ID)
}

func TestDriverReadsChainWhileScheduling(t *testing.T) {
	f := newFixture(t)
	f.seedChain(t)

	var profile *domain.ServiceProfile
	var pending *domain.ServiceChainInstance
	f.fw.plumbingFunc = func(nc *ports.NodeContext) domain.PlumbingInfo {
		var err error
		profile, err = nc.Chain.GetProfile(context.Background(), nc.CurrentNode.ProfileID)
		assert.NoError(t, err)
		pending, err = nc.Chain.GetInstance(context.Background(), nc.Instance.ID)
		assert.NoError(t, err)
		return domain.PlumbingInfo{}
	}
	f.fw.createFunc = func(ctx context.Context, nc *ports.NodeContext) error {
		assert.Same(t, f.manager, nc.Chain)
		return nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.manager.CreateInstance(context.Background(), &domain.ServiceChainInstance{ID: "i1", SpecIDs: []string{"s1"}})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("CreateInstance did not return")
	}

	require.NotNil(t, profile)
	assert.Equal(t, "p1", profile.ID)
	require.NotNil(t, pending)
	assert.Equal(t, domain.InstanceStatusBuild, pending.Status)
}

func TestCreateInstanceOutlivesCallerCancellation(t *testing.T) {
	f := newFixture(t)
	f.seedChain(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.fw.createFunc = func(context.Context, *ports.NodeContext) error {
		cancel()
		return nil
	}

	_, err := f.manager.CreateInstance(ctx, &domain.ServiceChainInstance{ID: "i1", SpecIDs: []string{"s1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"plug:n1,n2", "create:fw:n1", "create:lb:n2"}, f.log.all())

	instance, err := f.manager.GetInstance(context.Background(), "i1")
	require.NoError(t, err)
	assert.Equal(t, domain.InstanceStatusActive, instance.Status)
}

func TestDeleteInstanceOutlivesCallerCancellation(t *testing.T) {
	f := newFixture(t)
	f.seedChain(t)

	_, err := f.manager.CreateInstance(context.Background(), &domain.ServiceChainInstance{ID: "i1", SpecIDs: []string{"s1"}})
	require.NoError(t, err)
	f.log.reset()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.lb.deleteFunc = func(context.Context, *ports.NodeContext) error {
		cancel()
		return nil
	}

	require.NoError(t, f.manager.DeleteInstance(ctx, "i1"))
	assert.Equal(t, []string{"delete:fw:n1", "delete:lb:n2", "unplug:n1,n2"}, f.log.all())

	_, err = f.manager.GetInstance(context.Background(), "i1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
