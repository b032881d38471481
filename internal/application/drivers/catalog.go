package drivers

import (
	"fmt"
	"os"

	"github.com/aescanero/nodecomp/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Catalog lists the drivers and the plumber to load at startup
type Catalog struct {
	Plumber string       `yaml:"plumber"`
	Drivers []DriverSpec `yaml:"drivers"`
}

// DriverSpec describes one catalog driver. Catalog order is scheduling
// precedence.
type DriverSpec struct {
	Name         string              `yaml:"name"`
	Type         string              `yaml:"type"`
	Capabilities []Capability        `yaml:"capabilities"`
	Plumbing     domain.PlumbingInfo `yaml:"plumbing,omitempty"`
}

// DefaultCatalog accepts every service type with the noop driver
func DefaultCatalog() *Catalog {
	return &Catalog{
		Plumber: TypeNoop,
		Drivers: []DriverSpec{
			{
				Name:         "noop",
				Type:         TypeNoop,
				Capabilities: []Capability{{ServiceType: AnyServiceType}},
			},
		},
	}
}

// LoadCatalog reads a YAML catalog from path. An empty path returns the
// default catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read driver catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse driver catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the catalog
func (c *Catalog) Validate() error {
	if c.Plumber == "" {
		c.Plumber = TypeNoop
	}
	if len(c.Drivers) == 0 {
		return fmt.Errorf("driver catalog lists no drivers")
	}
	names := make(map[string]bool, len(c.Drivers))
	for i, d := range c.Drivers {
		if d.Name == "" {
			return fmt.Errorf("driver %d: name is required", i)
		}
		if names[d.Name] {
			return fmt.Errorf("driver %s listed twice", d.Name)
		}
		names[d.Name] = true
		if d.Type == "" {
			return fmt.Errorf("driver %s: type is required", d.Name)
		}
		if len(d.Capabilities) == 0 {
			return fmt.Errorf("driver %s: at least one capability is required", d.Name)
		}
		for _, capability := range d.Capabilities {
			if capability.ServiceType == "" {
				return fmt.Errorf("driver %s: capability without service_type", d.Name)
			}
		}
	}
	return nil
}
