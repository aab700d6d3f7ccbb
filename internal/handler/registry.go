package handler

// Registry groups Handlers into ordered priority tiers. The scanner runs
// each tier independently and concatenates results tier by tier before the
// driver reconciles them, so earlier tiers naturally win containment ties.
type Registry struct {
	tiers [][]Handler
}

// NewRegistry builds a Registry from ordered tiers, highest priority first.
func NewRegistry(tiers ...[]Handler) *Registry {
	return &Registry{tiers: tiers}
}

// Tiers returns the ordered priority tiers.
func (reg *Registry) Tiers() [][]Handler {
	return reg.tiers
}

// All flattens every handler across every tier, in priority order; Lookup
// searches it by name.
func (reg *Registry) All() []Handler {
	var all []Handler
	for _, tier := range reg.tiers {
		all = append(all, tier...)
	}

	return all
}

// Lookup finds a handler by name across all tiers, or returns nil.
func (reg *Registry) Lookup(name string) Handler {
	for _, h := range reg.All() {
		if h.Name() == name {
			return h
		}
	}

	return nil
}

// Default returns the registry shipped with this engine: an archives tier
// (tar, zip, rar) ahead of a compression tier (gzip), mirroring
// unblob's filesystems > archives > compression ordering with the
// filesystem tier left unpopulated.
func Default() *Registry {
	return NewRegistry(
		[]Handler{NewTarHandler(), NewZipHandler(), NewRarHandler()},
		[]Handler{NewGzipHandler()},
	)
}
