package hosting

import (
	"fmt"
	"sort"
)

// Constructor builds a provider for an owner/repo parsed from the
// remote URL. Provider packages register themselves at init time so the
// factory does not import them.
type Constructor func(remoteURL string, cfg Config) (Provider, error)

var constructors = map[ProviderType]Constructor{}

// Register installs a provider constructor. Called from init() in the
// github and gitlab subpackages.
func Register(pt ProviderType, c Constructor) {
	constructors[pt] = c
}

// New creates a provider for the repository behind remoteURL. When
// cfg.Provider is empty the type is detected from the URL.
func New(remoteURL string, cfg Config) (Provider, error) {
	pt := ProviderType(cfg.Provider)
	if cfg.Provider == "" || cfg.Provider == "auto" {
		pt = Detect(remoteURL)
		if pt == ProviderUnknown {
			return nil, fmt.Errorf("cannot detect hosting provider from remote %q; set hosting.provider in config", remoteURL)
		}
	}

	c, ok := constructors[pt]
	if !ok {
		return nil, fmt.Errorf("unsupported hosting provider %q (registered: %v)", pt, registered())
	}
	return c(remoteURL, cfg)
}

func registered() []ProviderType {
	var pts []ProviderType
	for pt := range constructors {
		pts = append(pts, pt)
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i] < pts[j] })
	return pts
}
