package reputation

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed badges.yaml
var defaultCatalog []byte

const EcoWarrior = "eco_warrior"

type Badge struct {
	Key         string `yaml:"key" json:"key"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Threshold   int    `yaml:"completed_exchanges" json:"completed_exchanges"`
}

type Catalog struct {
	Badges []Badge `yaml:"badges"`
}

// DefaultCatalog returns the badge catalog shipped with the service.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing badge catalog: %w", err)
	}

	seen := make(map[string]bool, len(c.Badges))
	for _, b := range c.Badges {
		if b.Key == "" {
			return nil, fmt.Errorf("badge %q has no key", b.Name)
		}
		if seen[b.Key] {
			return nil, fmt.Errorf("badge %q is defined twice", b.Key)
		}
		if b.Threshold <= 0 {
			return nil, fmt.Errorf("badge %q needs a positive completed_exchanges threshold", b.Key)
		}
		seen[b.Key] = true
	}

	sort.SliceStable(c.Badges, func(i, j int) bool { return c.Badges[i].Threshold < c.Badges[j].Threshold })
	return &c, nil
}

// Earned returns every badge whose threshold is met by completed.
func (c *Catalog) Earned(completed int) []Badge {
	var earned []Badge
	for _, b := range c.Badges {
		if completed >= b.Threshold {
			earned = append(earned, b)
		}
	}
	return earned
}

func (c *Catalog) Get(key string) (Badge, bool) {
	for _, b := range c.Badges {
		if b.Key == key {
			return b, true
		}
	}
	return Badge{}, false
}
