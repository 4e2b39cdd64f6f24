// Package catalog lists the providers this build knows how to parse.
package catalog

import (
	"fmt"
	"strings"

	"github.com/nhle/circuit-janitor/internal/model"
	"github.com/nhle/circuit-janitor/internal/provider"
	"github.com/nhle/circuit-janitor/internal/provider/gtt"
	"github.com/nhle/circuit-janitor/internal/provider/standard"
	"github.com/nhle/circuit-janitor/internal/provider/telia"
	"github.com/nhle/circuit-janitor/internal/provider/zayo"
)

// All returns every known provider.
func All(cfg model.ProvidersConfig) []provider.Provider {
	return []provider.Provider{
		standard.NTT(),
		standard.PacketFabric(),
		standard.EUNetworks(),
		zayo.New(cfg.TZPrefix),
		gtt.New(),
		telia.New(),
	}
}

// Registry builds a registry of the providers enabled in cfg. An empty
// enabled list means all of them; an unknown name is an error.
func Registry(cfg model.ProvidersConfig) (*provider.Registry, error) {
	all := All(cfg)
	if len(cfg.Enabled) == 0 {
		return provider.NewRegistry(all...)
	}

	byName := make(map[string]provider.Provider, len(all))
	for _, p := range all {
		byName[p.Name()] = p
	}

	var enabled []provider.Provider
	for _, name := range cfg.Enabled {
		p, ok := byName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", name)
		}
		enabled = append(enabled, p)
	}
	return provider.NewRegistry(enabled...)
}
