package drivers

import (
	"fmt"

	noopdriver "github.com/aescanero/nodecomp/pkg/adapters/drivers/noop"
	noopplumber "github.com/aescanero/nodecomp/pkg/adapters/plumbers/noop"
	"github.com/aescanero/nodecomp/pkg/ports"
	"go.uber.org/zap"
)

// Built-in driver and plumber types
const (
	TypeNoop = "noop"
)

// NewDriver creates a driver for a catalog entry
func NewDriver(spec DriverSpec, logger *zap.Logger) (ports.NodeDriver, error) {
	switch spec.Type {
	case TypeNoop:
		return noopdriver.NewDriver(spec.Name, spec.Plumbing, logger), nil
	default:
		return nil, fmt.Errorf("unsupported driver type: %s", spec.Type)
	}
}

// NewPlumber creates a plumber by type
func NewPlumber(plumberType string, logger *zap.Logger) (ports.Plumber, error) {
	switch plumberType {
	case TypeNoop, "":
		return noopplumber.NewPlumber(logger), nil
	default:
		return nil, fmt.Errorf("unsupported plumber type: %s", plumberType)
	}
}

// Build registers every catalog driver on a new registry and creates the
// catalog plumber. Neither is initialized.
func Build(c *Catalog, logger *zap.Logger) (*Registry, ports.Plumber, error) {
	registry := NewRegistry(logger)
	for _, spec := range c.Drivers {
		driver, err := NewDriver(spec, logger.With(zap.String("driver", spec.Name)))
		if err != nil {
			return nil, nil, err
		}
		if err := registry.Register(driver, spec.Capabilities...); err != nil {
			return nil, nil, err
		}
	}

	plumber, err := NewPlumber(c.Plumber, logger)
	if err != nil {
		return nil, nil, err
	}
	return registry, plumber, nil
}
