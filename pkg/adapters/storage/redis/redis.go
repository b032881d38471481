package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/aescanero/nodecomp/pkg/domain"
	"github.com/aescanero/nodecomp/pkg/ports"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ ports.EntityStore = (*EntityStore)(nil)

const defaultPrefix = "nodecomp"

const (
	kindProfile  = "profile"
	kindNode     = "node"
	kindSpec     = "spec"
	kindInstance = "instance"
)

// EntityStore implements ports.EntityStore using Redis.
//
// Each entity is a JSON document under <prefix>:<kind>:<id>, and every kind
// keeps an id set under <prefix>:<kind>:index. A transaction WATCHes every
// key it reads, buffers its writes and flushes them in one MULTI/EXEC; a
// concurrent change to a watched key aborts it with domain.ErrConflict.
type EntityStore struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
}

// NewEntityStore creates a new Redis entity store
func NewEntityStore(client *redis.Client, logger *zap.Logger) *EntityStore {
	return &EntityStore{
		client: client,
		logger: logger,
		prefix: defaultPrefix,
	}
}

// RunInTransaction runs fn as one optimistic Redis transaction
func (s *EntityStore) RunInTransaction(ctx context.Context, fn func(tx ports.Tx) error) error {
	err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
		t := newTxn(rtx, s.prefix)
		if err := fn(t); err != nil {
			return err
		}
		return t.commit(ctx)
	})
	if errors.Is(err, redis.TxFailedErr) {
		s.logger.Warn("redis transaction aborted by concurrent write")
		return fmt.Errorf("redis transaction aborted: %w", domain.ErrConflict)
	}
	return err
}

// Close is a no-op. The Redis client is shared and closed by its owner.
func (s *EntityStore) Close() error {
	return nil
}

type overlay struct {
	writes  map[string]map[string][]byte
	deletes map[string]map[string]bool
}

func newOverlay() overlay {
	return overlay{
		writes:  make(map[string]map[string][]byte),
		deletes: make(map[string]map[string]bool),
	}
}

func (o overlay) clone() overlay {
	out := newOverlay()
	for kind, docs := range o.writes {
		out.writes[kind] = make(map[string][]byte, len(docs))
		for id, data := range docs {
			out.writes[kind][id] = data
		}
	}
	for kind, ids := range o.deletes {
		out.deletes[kind] = make(map[string]bool, len(ids))
		for id := range ids {
			out.deletes[kind][id] = true
		}
	}
	return out
}

type txn struct {
	rtx     *redis.Tx
	prefix  string
	watched map[string]bool
	pending overlay
}

func newTxn(rtx *redis.Tx, prefix string) *txn {
	return &txn{
		rtx:     rtx,
		prefix:  prefix,
		watched: make(map[string]bool),
		pending: newOverlay(),
	}
}

func (t *txn) docKey(kind, id string) string {
	return fmt.Sprintf("%s:%s:%s", t.prefix, kind, id)
}

func (t *txn) indexKey(kind string) string {
	return fmt.Sprintf("%s:%s:index", t.prefix, kind)
}

func (t *txn) watch(ctx context.Context, key string) error {
	if t.watched[key] {
		return nil
	}
	if err := t.rtx.Watch(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to watch %s: %w", key, err)
	}
	t.watched[key] = true
	return nil
}

// raw returns the document for kind/id as seen by this transaction
func (t *txn) raw(ctx context.Context, kind, id string) ([]byte, bool, error) {
	if t.pending.deletes[kind][id] {
		return nil, false, nil
	}
	if data, ok := t.pending.writes[kind][id]; ok {
		return data, true, nil
	}

	key := t.docKey(kind, id)
	if err := t.watch(ctx, key); err != nil {
		return nil, false, err
	}
	data, err := t.rtx.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return data, true, nil
}

// ids returns every id of kind as seen by this transaction
func (t *txn) ids(ctx context.Context, kind string) ([]string, error) {
	key := t.indexKey(kind)
	if err := t.watch(ctx, key); err != nil {
		return nil, err
	}
	members, err := t.rtx.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", key, err)
	}

	set := make(map[string]bool, len(members))
	for _, id := range members {
		set[id] = true
	}
	for id := range t.pending.writes[kind] {
		set[id] = true
	}
	for id := range t.pending.deletes[kind] {
		delete(set, id)
	}

	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (t *txn) put(kind, id string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", kind, id, err)
	}
	if t.pending.writes[kind] == nil {
		t.pending.writes[kind] = make(map[string][]byte)
	}
	t.pending.writes[kind][id] = data
	delete(t.pending.deletes[kind], id)
	return nil
}

func (t *txn) remove(kind, id string) {
	delete(t.pending.writes[kind], id)
	if t.pending.deletes[kind] == nil {
		t.pending.deletes[kind] = make(map[string]bool)
	}
	t.pending.deletes[kind][id] = true
}

func (t *txn) commit(ctx context.Context) error {
	if len(t.pending.writes) == 0 && len(t.pending.deletes) == 0 {
		return nil
	}
	_, err := t.rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for kind, docs := range t.pending.writes {
			for id, data := range docs {
				pipe.Set(ctx, t.docKey(kind, id), data, 0)
				pipe.SAdd(ctx, t.indexKey(kind), id)
			}
		}
		for kind, ids := range t.pending.deletes {
			for id := range ids {
				pipe.Del(ctx, t.docKey(kind, id))
				pipe.SRem(ctx, t.indexKey(kind), id)
			}
		}
		return nil
	})
	return err
}

func (t *txn) Savepoint(ctx context.Context, fn func(tx ports.Tx) error) error {
	snapshot := t.pending.clone()
	if err := fn(t); err != nil {
		t.pending = snapshot
		return err
	}
	return nil
}

func load[T any](ctx context.Context, t *txn, kind, id string) (*T, bool, error) {
	data, ok, err := t.raw(ctx, kind, id)
	if err != nil || !ok {
		return nil, ok, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal %s %s: %w", kind, id, err)
	}
	return &v, true, nil
}

func loadMany[T any](ctx context.Context, t *txn, kind string, ids []string) ([]*T, error) {
	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		v, ok, err := load[T](ctx, t, kind, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func loadAll[T any](ctx context.Context, t *txn, kind string) ([]*T, error) {
	ids, err := t.ids(ctx, kind)
	if err != nil {
		return nil, err
	}
	return loadMany[T](ctx, t, kind, ids)
}

func (t *txn) exists(ctx context.Context, kind, id string) (bool, error) {
	_, ok, err := t.raw(ctx, kind, id)
	return ok, err
}

func (t *txn) create(ctx context.Context, kind, id string, v interface{}) error {
	ok, err := t.exists(ctx, kind, id)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%s %s already exists: %w", kind, id, domain.ErrConflict)
	}
	return t.put(kind, id, v)
}

func (t *txn) replace(ctx context.Context, kind, entityKind, id string, v interface{}) error {
	ok, err := t.exists(ctx, kind, id)
	if err != nil {
		return err
	}
	if !ok {
		return &domain.NotFoundError{Kind: entityKind, ID: id}
	}
	return t.put(kind, id, v)
}

func (t *txn) drop(ctx context.Context, kind, entityKind, id string) error {
	ok, err := t.exists(ctx, kind, id)
	if err != nil {
		return err
	}
	if !ok {
		return &domain.NotFoundError{Kind: entityKind, ID: id}
	}
	t.remove(kind, id)
	return nil
}
