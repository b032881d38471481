package noop

import (
	"context"

	"github.com/aescanero/nodecomp/pkg/domain"
	"github.com/aescanero/nodecomp/pkg/ports"
	"go.uber.org/zap"
)

var _ ports.NodeDriver = (*Driver)(nil)

// Driver accepts every node operation and provisions nothing. It reports
// the plumbing it was configured with so plumbers can be exercised.
type Driver struct {
	name     string
	plumbing domain.PlumbingInfo
	logger   *zap.Logger
}

// NewDriver creates a noop driver
func NewDriver(name string, plumbing domain.PlumbingInfo, logger *zap.Logger) *Driver {
	return &Driver{
		name:     name,
		plumbing: plumbing,
		logger:   logger,
	}
}

// Name returns the registered driver name
func (d *Driver) Name() string {
	return d.name
}

// Create logs the node creation
func (d *Driver) Create(ctx context.Context, nc *ports.NodeContext) error {
	d.log("create", nc)
	return nil
}

// Update logs the node update
func (d *Driver) Update(ctx context.Context, nc *ports.NodeContext) error {
	d.log("update", nc)
	return nil
}

// Delete logs the node deletion
func (d *Driver) Delete(ctx context.Context, nc *ports.NodeContext) error {
	d.log("delete", nc)
	return nil
}

// GetPlumbingInfo returns the configured plumbing requirements
func (d *Driver) GetPlumbingInfo(nc *ports.NodeContext) domain.PlumbingInfo {
	return d.plumbing
}

func (d *Driver) log(op string, nc *ports.NodeContext) {
	fields := []zap.Field{zap.String("driver", d.name), zap.String("operation", op)}
	if nc != nil {
		if nc.Instance != nil {
			fields = append(fields, zap.String("instance_id", nc.Instance.ID))
		}
		if nc.CurrentNode != nil {
			fields = append(fields, zap.String("node_id", nc.CurrentNode.ID))
		}
	}
	d.logger.Debug("noop driver call", fields...)
}
