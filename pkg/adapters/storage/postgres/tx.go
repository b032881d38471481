package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aescanero/nodecomp/pkg/domain"
	"github.com/aescanero/nodecomp/pkg/ports"
)

type scanner interface {
	Scan(dest ...any) error
}

type txn struct {
	db         DB
	savepoints int
}

func (t *txn) Savepoint(ctx context.Context, fn func(tx ports.Tx) error) error {
	t.savepoints++
	name := fmt.Sprintf("sp_%d", t.savepoints)
	if _, err := t.db.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if err := fn(t); err != nil {
		if _, rbErr := t.db.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("rollback to savepoint: %w", errors.Join(err, rbErr))
		}
		return err
	}
	if _, err := t.db.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (t *txn) exec(ctx context.Context, query string, args ...any) error {
	if _, err := t.db.ExecContext(ctx, query, args...); err != nil {
		return mapError(err)
	}
	return nil
}

// execOne runs a statement that must touch exactly one row
func (t *txn) execOne(ctx context.Context, kind, id, query string, args ...any) error {
	res, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

func (t *txn) queryIDs(ctx context.Context, query string, arg string) ([]string, error) {
	rows, err := t.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (t *txn) insertPositions(ctx context.Context, query, ownerID string, ids []string) error {
	for pos, id := range ids {
		if err := t.exec(ctx, query, ownerID, id, pos); err != nil {
			return err
		}
	}
	return nil
}

// queryRows scans every row in order
func queryRows[T any](ctx context.Context, db DB, scan func(scanner) (*T, error), query string, args ...any) ([]*T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// inRequestedOrder reorders rows to match ids, skipping missing ones
func inRequestedOrder[T any](ids []string, rows []*T, idOf func(*T) string) []*T {
	byID := make(map[string]*T, len(rows))
	for _, r := range rows {
		byID[idOf(r)] = r
	}
	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Profiles

func scanProfile(row scanner) (*domain.ServiceProfile, error) {
	var p domain.ServiceProfile
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Description, &p.ServiceType, &p.Vendor,
		&p.ServiceFlavor, &p.InsertionMode, &p.Shared, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *txn) CreateProfile(ctx context.Context, p *domain.ServiceProfile) error {
	return t.exec(ctx, insertProfileQuery, p.ID, p.TenantID, p.Name, p.Description, p.ServiceType,
		p.Vendor, p.ServiceFlavor, p.InsertionMode, p.Shared, normalizeTime(p.CreatedAt))
}

func (t *txn) GetProfile(ctx context.Context, id string) (*domain.ServiceProfile, error) {
	p, err := scanProfile(t.db.QueryRowContext(ctx, selectProfileQuery, id))
	if err != nil {
		return nil, handleNotFound(err, domain.KindProfile, id)
	}
	if err := t.decorateProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (t *txn) GetProfiles(ctx context.Context, ids []string) ([]*domain.ServiceProfile, error) {
	if len(ids) == 0 {
		return []*domain.ServiceProfile{}, nil
	}
	rows, err := queryRows(ctx, t.db, scanProfile, selectProfilesByIDsQuery, ids)
	if err != nil {
		return nil, err
	}
	out := inRequestedOrder(ids, rows, func(p *domain.ServiceProfile) string { return p.ID })
	for _, p := range out {
		if err := t.decorateProfile(ctx, p); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *txn) ListProfiles(ctx context.Context, tenantID string) ([]*domain.ServiceProfile, error) {
	out, err := queryRows(ctx, t.db, scanProfile, listProfilesQuery, tenantID)
	if err != nil {
		return nil, err
	}
	for _, p := range out {
		if err := t.decorateProfile(ctx, p); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *txn) UpdateProfile(ctx context.Context, p *domain.ServiceProfile) error {
	return t.execOne(ctx, domain.KindProfile, p.ID, updateProfileQuery, p.ID, p.Name, p.Description,
		p.ServiceType, p.Vendor, p.ServiceFlavor, p.InsertionMode, p.Shared)
}

func (t *txn) DeleteProfile(ctx context.Context, id string) error {
	return t.execOne(ctx, domain.KindProfile, id, deleteProfileQuery, id)
}

func (t *txn) decorateProfile(ctx context.Context, p *domain.ServiceProfile) error {
	ids, err := t.queryIDs(ctx, selectProfileNodeIDsQuery, p.ID)
	if err != nil {
		return err
	}
	p.NodeIDs = ids
	return nil
}

// Nodes

func scanNode(row scanner) (*domain.ServiceChainNode, error) {
	var n domain.ServiceChainNode
	err := row.Scan(&n.ID, &n.TenantID, &n.Name, &n.Description, &n.ProfileID, &n.Config, &n.Shared, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (t *txn) CreateNode(ctx context.Context, n *domain.ServiceChainNode) error {
	return t.exec(ctx, insertNodeQuery, n.ID, n.TenantID, n.Name, n.Description, n.ProfileID,
		n.Config, n.Shared, normalizeTime(n.CreatedAt))
}

func (t *txn) GetNode(ctx context.Context, id string) (*domain.ServiceChainNode, error) {
	n, err := scanNode(t.db.QueryRowContext(ctx, selectNodeQuery, id))
	if err != nil {
		return nil, handleNotFound(err, domain.KindNode, id)
	}
	if err := t.decorateNode(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (t *txn) GetNodes(ctx context.Context, ids []string) ([]*domain.ServiceChainNode, error) {
	if len(ids) == 0 {
		return []*domain.ServiceChainNode{}, nil
	}
	rows, err := queryRows(ctx, t.db, scanNode, selectNodesByIDsQuery, ids)
	if err != nil {
		return nil, err
	}
	// a spec may list the same node twice
	out := inRequestedOrder(ids, rows, func(n *domain.ServiceChainNode) string { return n.ID })
	for i, n := range out {
		out[i] = n.Clone()
		if err := t.decorateNode(ctx, out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *txn) ListNodes(ctx context.Context, tenantID string) ([]*domain.ServiceChainNode, error) {
	out, err := queryRows(ctx, t.db, scanNode, listNodesQuery, tenantID)
	if err != nil {
		return nil, err
	}
	for _, n := range out {
		if err := t.decorateNode(ctx, n); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *txn) UpdateNode(ctx context.Context, n *domain.ServiceChainNode) error {
	return t.execOne(ctx, domain.KindNode, n.ID, updateNodeQuery, n.ID, n.Name, n.Description,
		n.ProfileID, n.Config, n.Shared)
}

func (t *txn) DeleteNode(ctx context.Context, id string) error {
	return t.execOne(ctx, domain.KindNode, id, deleteNodeQuery, id)
}

func (t *txn) decorateNode(ctx context.Context, n *domain.ServiceChainNode) error {
	ids, err := t.queryIDs(ctx, selectNodeSpecIDsQuery, n.ID)
	if err != nil {
		return err
	}
	n.SpecIDs = ids
	return nil
}

// Specs

func scanSpec(row scanner) (*domain.ServiceChainSpec, error) {
	var s domain.ServiceChainSpec
	err := row.Scan(&s.ID, &s.TenantID, &s.Name, &s.Description, &s.ConfigParam, &s.Shared, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (t *txn) CreateSpec(ctx context.Context, s *domain.ServiceChainSpec) error {
	err := t.exec(ctx, insertSpecQuery, s.ID, s.TenantID, s.Name, s.Description, s.ConfigParam,
		s.Shared, normalizeTime(s.CreatedAt))
	if err != nil {
		return err
	}
	return t.insertPositions(ctx, insertSpecNodeQuery, s.ID, s.NodeIDs)
}

func (t *txn) GetSpec(ctx context.Context, id string) (*domain.ServiceChainSpec, error) {
	s, err := scanSpec(t.db.QueryRowContext(ctx, selectSpecQuery, id))
	if err != nil {
		return nil, handleNotFound(err, domain.KindSpec, id)
	}
	if err := t.decorateSpec(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (t *txn) GetSpecs(ctx context.Context, ids []string) ([]*domain.ServiceChainSpec, error) {
	if len(ids) == 0 {
		return []*domain.ServiceChainSpec{}, nil
	}
	rows, err := queryRows(ctx, t.db, scanSpec, selectSpecsByIDsQuery, ids)
	if err != nil {
		return nil, err
	}
	out := inRequestedOrder(ids, rows, func(s *domain.ServiceChainSpec) string { return s.ID })
	for i, s := range out {
		out[i] = s.Clone()
		if err := t.decorateSpec(ctx, out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *txn) ListSpecs(ctx context.Context, tenantID string) ([]*domain.ServiceChainSpec, error) {
	out, err := queryRows(ctx, t.db, scanSpec, listSpecsQuery, tenantID)
	if err != nil {
		return nil, err
	}
	for _, s := range out {
		if err := t.decorateSpec(ctx, s); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *txn) UpdateSpec(ctx context.Context, s *domain.ServiceChainSpec) error {
	err := t.execOne(ctx, domain.KindSpec, s.ID, updateSpecQuery, s.ID, s.Name, s.Description,
		s.ConfigParam, s.Shared)
	if err != nil {
		return err
	}
	if err := t.exec(ctx, deleteSpecNodesQuery, s.ID); err != nil {
		return err
	}
	return t.insertPositions(ctx, insertSpecNodeQuery, s.ID, s.NodeIDs)
}

func (t *txn) DeleteSpec(ctx context.Context, id string) error {
	return t.execOne(ctx, domain.KindSpec, id, deleteSpecQuery, id)
}

func (t *txn) decorateSpec(ctx context.Context, s *domain.ServiceChainSpec) error {
	nodeIDs, err := t.queryIDs(ctx, selectSpecNodeIDsQuery, s.ID)
	if err != nil {
		return err
	}
	instanceIDs, err := t.queryIDs(ctx, selectSpecInstanceIDsQuery, s.ID)
	if err != nil {
		return err
	}
	s.NodeIDs = nodeIDs
	if s.NodeIDs == nil {
		s.NodeIDs = []string{}
	}
	s.InstanceIDs = instanceIDs
	return nil
}

// Instances

func scanInstance(row scanner) (*domain.ServiceChainInstance, error) {
	var i domain.ServiceChainInstance
	var status string
	err := row.Scan(&i.ID, &i.TenantID, &i.Name, &i.Description, &i.ProviderGroupID, &i.ConsumerGroupID,
		&i.ClassifierID, &i.ConfigParamValues, &status, &i.StatusDetails, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	i.Status = domain.InstanceStatus(status)
	return &i, nil
}

func (t *txn) CreateInstance(ctx context.Context, i *domain.ServiceChainInstance) error {
	created := normalizeTime(i.CreatedAt)
	updated := i.UpdatedAt
	if updated.IsZero() {
		updated = created
	}
	err := t.exec(ctx, insertInstanceQuery, i.ID, i.TenantID, i.Name, i.Description, i.ProviderGroupID,
		i.ConsumerGroupID, i.ClassifierID, i.ConfigParamValues, string(i.Status), i.StatusDetails,
		created, updated.UTC())
	if err != nil {
		return err
	}
	return t.insertPositions(ctx, insertInstanceSpecQuery, i.ID, i.SpecIDs)
}

func (t *txn) GetInstance(ctx context.Context, id string) (*domain.ServiceChainInstance, error) {
	i, err := scanInstance(t.db.QueryRowContext(ctx, selectInstanceQuery, id))
	if err != nil {
		return nil, handleNotFound(err, domain.KindInstance, id)
	}
	if err := t.decorateInstance(ctx, i); err != nil {
		return nil, err
	}
	return i, nil
}

func (t *txn) GetInstances(ctx context.Context, ids []string) ([]*domain.ServiceChainInstance, error) {
	if len(ids) == 0 {
		return []*domain.ServiceChainInstance{}, nil
	}
	rows, err := queryRows(ctx, t.db, scanInstance, selectInstancesByIDsQuery, ids)
	if err != nil {
		return nil, err
	}
	out := inRequestedOrder(ids, rows, func(i *domain.ServiceChainInstance) string { return i.ID })
	for idx, i := range out {
		out[idx] = i.Clone()
		if err := t.decorateInstance(ctx, out[idx]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *txn) ListInstances(ctx context.Context, tenantID string) ([]*domain.ServiceChainInstance, error) {
	out, err := queryRows(ctx, t.db, scanInstance, listInstancesQuery, tenantID)
	if err != nil {
		return nil, err
	}
	for _, i := range out {
		if err := t.decorateInstance(ctx, i); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *txn) UpdateInstance(ctx context.Context, i *domain.ServiceChainInstance) error {
	err := t.execOne(ctx, domain.KindInstance, i.ID, updateInstanceQuery, i.ID, i.Name, i.Description,
		i.ClassifierID, i.ConfigParamValues, string(i.Status), i.StatusDetails, normalizeTime(i.UpdatedAt))
	if err != nil {
		return err
	}
	if err := t.exec(ctx, deleteInstanceSpecsQuery, i.ID); err != nil {
		return err
	}
	return t.insertPositions(ctx, insertInstanceSpecQuery, i.ID, i.SpecIDs)
}

func (t *txn) DeleteInstance(ctx context.Context, id string) error {
	return t.execOne(ctx, domain.KindInstance, id, deleteInstanceQuery, id)
}

func (t *txn) decorateInstance(ctx context.Context, i *domain.ServiceChainInstance) error {
	ids, err := t.queryIDs(ctx, selectInstanceSpecIDsQuery, i.ID)
	if err != nil {
		return err
	}
	i.SpecIDs = ids
	return nil
}

func (t *txn) InstanceUsingProfile(ctx context.Context, profileID string) (string, error) {
	var id string
	err := t.db.QueryRowContext(ctx, selectInstanceUsingProfileQuery, profileID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}
