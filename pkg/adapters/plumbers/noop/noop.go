package noop

import (
	"context"

	"github.com/aescanero/nodecomp/pkg/ports"
	"go.uber.org/zap"
)

var _ ports.Plumber = (*Plumber)(nil)

// Plumber satisfies connectivity requests without touching the network
type Plumber struct {
	logger *zap.Logger
}

// NewPlumber creates a noop plumber
func NewPlumber(logger *zap.Logger) *Plumber {
	return &Plumber{logger: logger}
}

// Initialize is a no-op
func (p *Plumber) Initialize(ctx context.Context) error {
	p.logger.Info("noop plumber initialized")
	return nil
}

// PlugServices logs the batch
func (p *Plumber) PlugServices(ctx context.Context, batch []*ports.ScheduledOp) error {
	p.logger.Debug("plug services",
		zap.Int("batch_size", len(batch)),
		zap.Int("targets", countTargets(batch)))
	return nil
}

// UnplugServices logs the batch
func (p *Plumber) UnplugServices(ctx context.Context, batch []*ports.ScheduledOp) error {
	p.logger.Debug("unplug services",
		zap.Int("batch_size", len(batch)),
		zap.Int("targets", countTargets(batch)))
	return nil
}

func countTargets(batch []*ports.ScheduledOp) int {
	n := 0
	for _, op := range batch {
		n += len(op.Plumbing.Management) + len(op.Plumbing.Provider) + len(op.Plumbing.Consumer)
	}
	return n
}
