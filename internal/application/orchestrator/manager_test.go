package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/nodecomp/internal/application/drivers"
	"github.com/aescanero/nodecomp/internal/application/sharing"
	"github.com/aescanero/nodecomp/internal/application/workers"
	"github.com/aescanero/nodecomp/pkg/adapters/storage/memory"
	"github.com/aescanero/nodecomp/pkg/domain"
	"github.com/aescanero/nodecomp/pkg/ports"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// callLog records driver and plumber calls in order
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

type fakeDriver struct {
	name       string
	log        *callLog
	createFunc func(ctx context.Context, nc *ports.NodeContext) error
	updateFunc func(ctx context.Context, nc *ports.NodeContext) error
	deleteFunc func(ctx context.Context, nc *ports.NodeContext) error

	plumbingFunc func(nc *ports.NodeContext) domain.PlumbingInfo
}

func (f *fakeDriver) Name() string { return f.name }

func (f *fakeDriver) Create(ctx context.Context, nc *ports.NodeContext) error {
	f.log.add("create:%s:%s", f.name, nc.CurrentNode.ID)
	if f.createFunc != nil {
		return f.createFunc(ctx, nc)
	}
	return nil
}

func (f *fakeDriver) Update(ctx context.Context, nc *ports.NodeContext) error {
	f.log.add("update:%s:%s:%s", f.name, nc.CurrentNode.ID, nc.Instance.ID)
	if f.updateFunc != nil {
		return f.updateFunc(ctx, nc)
	}
	return nil
}

func (f *fakeDriver) Delete(ctx context.Context, nc *ports.NodeContext) error {
	f.log.add("delete:%s:%s", f.name, nc.CurrentNode.ID)
	if f.deleteFunc != nil {
		return f.deleteFunc(ctx, nc)
	}
	return nil
}

func (f *fakeDriver) GetPlumbingInfo(nc *ports.NodeContext) domain.PlumbingInfo {
	if f.plumbingFunc != nil {
		return f.plumbingFunc(nc)
	}
	return domain.PlumbingInfo{}
}

type fakePlumber struct {
	log     *callLog
	plugErr error
}

func (f *fakePlumber) Initialize(ctx context.Context) error { return nil }

func (f *fakePlumber) PlugServices(ctx context.Context, batch []*ports.ScheduledOp) error {
	f.log.add("plug:%s", keys(batch))
	return f.plugErr
}

func (f *fakePlumber) UnplugServices(ctx context.Context, batch []*ports.ScheduledOp) error {
	f.log.add("unplug:%s", keys(batch))
	return nil
}

func keys(batch []*ports.ScheduledOp) string {
	out := make([]string, 0, len(batch))
	for _, op := range batch {
		out = append(out, op.Key)
	}
	return strings.Join(out, ",")
}

type fakeBus struct {
	mu     sync.Mutex
	events []domain.Event
}

func (f *fakeBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	return nil
}

func (f *fakeBus) Unsubscribe(ctx context.Context, topic string) error { return nil }
func (f *fakeBus) Close() error                                       { return nil }

func (f *fakeBus) types() []domain.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.EventType, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	manager *Manager
	store   *memory.EntityStore
	log     *callLog
	fw      *fakeDriver
	lb      *fakeDriver
	plumber *fakePlumber
	bus     *fakeBus
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	withoutLB bool
	pool      *workers.Pool
	wrapStore func(ports.EntityStore) ports.EntityStore
}

func withoutLoadBalancerDriver() fixtureOption {
	return func(c *fixtureConfig) { c.withoutLB = true }
}

func withPool(p *workers.Pool) fixtureOption {
	return func(c *fixtureConfig) { c.pool = p }
}

func withStore(wrap func(ports.EntityStore) ports.EntityStore) fixtureOption {
	return func(c *fixtureConfig) { c.wrapStore = wrap }
}

// savepointStore counts the nested units of work opened on its transactions
type savepointStore struct {
	ports.EntityStore

	mu         sync.Mutex
	savepoints int
}

func (s *savepointStore) RunInTransaction(ctx context.Context, fn func(tx ports.Tx) error) error {
	return s.EntityStore.RunInTransaction(ctx, func(tx ports.Tx) error {
		return fn(&savepointTx{Tx: tx, store: s})
	})
}

func (s *savepointStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.savepoints
}

type savepointTx struct {
	ports.Tx
	store *savepointStore
}

func (t *savepointTx) Savepoint(ctx context.Context, fn func(tx ports.Tx) error) error {
	t.store.mu.Lock()
	t.store.savepoints++
	t.store.mu.Unlock()
	return t.Tx.Savepoint(ctx, fn)
}

// newFixture wires a manager with a FIREWALL driver "fw" and a
// LOADBALANCER driver "lb" over the memory store
func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cfg := &fixtureConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	log := &callLog{}
	fw := &fakeDriver{name: "fw", log: log}
	lb := &fakeDriver{name: "lb", log: log}

	registry := drivers.NewRegistry(zap.NewNop())
	require.NoError(t, registry.Register(fw, drivers.Capability{ServiceType: "FIREWALL"}))
	if !cfg.withoutLB {
		require.NoError(t, registry.Register(lb, drivers.Capability{ServiceType: "LOADBALANCER"}))
	}

	store := memory.NewEntityStore()
	plumber := &fakePlumber{log: log}
	bus := &fakeBus{}

	var entities ports.EntityStore = store
	if cfg.wrapStore != nil {
		entities = cfg.wrapStore(store)
	}

	m := NewManager(entities, registry, plumber, sharing.NewGuard(), bus, nil, cfg.pool, NewValidator(), zap.NewNop())
	require.NoError(t, m.Initialize(context.Background()))

	return &fixture{manager: m, store: store, log: log, fw: fw, lb: lb, plumber: plumber, bus: bus}
}

func startPool(t *testing.T, size int) *workers.Pool {
	t.Helper()
	p := workers.NewPool(size, nil, zap.NewNop(), time.Hour)
	require.NoError(t, p.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
	return p
}

// seedChain creates profiles p1 (FIREWALL) and p2 (LOADBALANCER), nodes
// n1 and n2 using them, and spec s1 = [n1, n2]
func (f *fixture) seedChain(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	_, err := f.manager.CreateProfile(ctx, &domain.ServiceProfile{ID: "p1", Name: "fw", ServiceType: "FIREWALL"})
	require.NoError(t, err)
	_, err = f.manager.CreateProfile(ctx, &domain.ServiceProfile{ID: "p2", Name: "lb", ServiceType: "LOADBALANCER"})
	require.NoError(t, err)
	_, err = f.manager.CreateNode(ctx, &domain.ServiceChainNode{ID: "n1", Name: "fw-node", ProfileID: "p1", Config: "v1"})
	require.NoError(t, err)
	_, err = f.manager.CreateNode(ctx, &domain.ServiceChainNode{ID: "n2", Name: "lb-node", ProfileID: "p2"})
	require.NoError(t, err)
	_, err = f.manager.CreateSpec(ctx, &domain.ServiceChainSpec{ID: "s1", Name: "web", NodeIDs: []string{"n1", "n2"}})
	require.NoError(t, err)

	f.log.reset()
}

func (f *fixture) instanceIDs(t *testing.T) []string {
	t.Helper()
	instances, err := f.manager.ListInstances(context.Background())
	require.NoError(t, err)
	ids := make([]string, 0, len(instances))
	for _, i := range instances {
		ids = append(ids, i.ID)
	}
	return ids
}
