package resolve

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/forgepm/forge/workerpool"
)

// SourceManager is responsible for retrieving, managing, and
// interrogating source repositories on behalf of the Dependency Resolver
// (spec §4.D/§4.E combined). It owns the Checkout Cache and the identity
// registry, and fans fetches out across a bounded worker pool (spec §5
// "Scheduling model").
type SourceManager struct {
	registry            *Registry
	cache               *Cache
	analyzer            Analyzer
	pool                *workerpool.Pool
	registryProviderFor func(raw string) (Provider, error)

	mu        sync.Mutex
	locations map[Identity]Location
}

// SourceManagerConfig bundles the construction-time dependencies.
type SourceManagerConfig struct {
	CacheDir    string
	Analyzer    Analyzer
	Concurrency int // fetch worker pool size; <=0 defaults to 8

	// RegistryProviderFor, if set, supplies the Provider for
	// LocationRegistry identities (spec §4.D extended with registry-
	// identifier locations). It receives the location's raw registry
	// base URL so the caller can attach per-registry auth from Config.
	RegistryProviderFor func(raw string) (Provider, error)
}

// NewSourceManager returns a SourceManager rooted at cfg.CacheDir.
func NewSourceManager(cfg SourceManagerConfig) *SourceManager {
	sm := &SourceManager{
		registry:            NewRegistry(),
		analyzer:            cfg.Analyzer,
		locations:           make(map[Identity]Location),
		registryProviderFor: cfg.RegistryProviderFor,
	}

	n := cfg.Concurrency
	if n <= 0 {
		n = 8
	}
	sm.pool = workerpool.New(n)
	sm.cache = NewCache(cfg.CacheDir, sm.providerFor)
	return sm
}

// SetAnalyzer wires the Analyzer after construction, for callers whose
// Analyzer implementation itself needs a reference to this SourceManager
// (forge.NewAnalyzer is such a case: it registers dependency manifests it
// parses against the same Identity Registry this SourceManager owns).
func (sm *SourceManager) SetAnalyzer(a Analyzer) {
	sm.analyzer = a
}

func (sm *SourceManager) providerFor(id Identity) (Provider, Location, error) {
	sm.mu.Lock()
	loc, ok := sm.locations[id]
	sm.mu.Unlock()
	if !ok {
		return nil, Location{}, errors.Errorf("source manager has no registered location for %s", id)
	}
	if loc.Kind == LocationRegistry {
		if sm.registryProviderFor == nil {
			return nil, loc, errors.Errorf("no registry provider configured for %s", id)
		}
		p, err := sm.registryProviderFor(loc.Raw)
		return p, loc, err
	}
	p, err := ProviderFor(loc.Kind)
	return p, loc, err
}

// RegisterLocation associates id with the location it should be fetched
// through. The Dependency Requirement normalizer calls this as it
// discovers new identities while walking manifests. If id was already
// registered against a different raw location, this fails closed with
// AmbiguousLocationError rather than silently preferring either one
// (open question 9(ii)).
func (sm *SourceManager) RegisterLocation(id Identity, loc Location) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if existing, ok := sm.locations[id]; ok && existing.Raw != loc.Raw {
		return errors.WithStack(&AmbiguousLocationError{Identity: id, First: existing, Second: loc})
	}
	sm.locations[id] = loc
	return nil
}

// Observe canonicalizes loc, registers its location, and returns the
// resulting Identity (spec §4.A).
func (sm *SourceManager) Observe(loc Location) (Identity, error) {
	id, err := sm.registry.Observe(loc)
	if err != nil {
		return Identity{}, err
	}
	if err := sm.RegisterLocation(id, loc); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// SourceExists checks if a repository exists, either upstream or in the
// cache.
func (sm *SourceManager) SourceExists(id Identity) (bool, error) {
	provider, loc, err := sm.providerFor(id)
	if err != nil {
		return false, err
	}
	dest := sm.cache.dirFor(id)
	if exists, _ := provider.Exists(dest); exists {
		return true, nil
	}
	return provider.Exists(loc.Raw)
}

// ListVersions retrieves id's available versions via the Checkout Cache
// (memoized after first call).
func (sm *SourceManager) ListVersions(id Identity) ([]SemVersion, error) {
	return sm.cache.Tags(id)
}

// Checkout brings id to the given State and returns the checkout path.
func (sm *SourceManager) Checkout(id Identity, at State) (string, error) {
	return sm.cache.Checkout(id, at)
}

// GetManifestAndLock loads the Manifest and Lock from id's checkout at
// the given State, delegating to the configured Analyzer (spec §4.G
// "load candidate manifests lazily").
func (sm *SourceManager) GetManifestAndLock(id Identity, at State) (Manifest, Lock, error) {
	path, err := sm.cache.Checkout(id, at)
	if err != nil {
		return nil, nil, err
	}
	return sm.analyzer.DeriveManifestAndLock(path, id)
}

// ResolveBranchHead resolves a branch dependency's name to its current
// head revision (spec §8 scenario 4 "Branch pin").
func (sm *SourceManager) ResolveBranchHead(id Identity, branch string) (Revision, error) {
	provider, loc, err := sm.providerFor(id)
	if err != nil {
		return "", err
	}
	dest := sm.cache.dirFor(id)
	if exists, _ := provider.Exists(dest); !exists {
		if err := provider.Fetch(loc, dest); err != nil {
			return "", err
		}
	}
	repo, err := provider.Open(dest)
	if err != nil {
		return "", err
	}
	return repo.ResolveBranch(branch)
}

// ResolveTagState resolves a semantic-version candidate to the concrete
// State (revision) the Checkout Cache should materialize.
func (sm *SourceManager) ResolveTagState(id Identity, v SemVersion) (State, error) {
	provider, loc, err := sm.providerFor(id)
	if err != nil {
		return State{}, err
	}
	dest := sm.cache.dirFor(id)
	if exists, _ := provider.Exists(dest); !exists {
		if err := provider.Fetch(loc, dest); err != nil {
			return State{}, err
		}
	}
	repo, err := provider.Open(dest)
	if err != nil {
		return State{}, err
	}
	rev, err := repo.ResolveTag(v)
	if err != nil {
		return State{}, err
	}
	return State{Revision: rev}, nil
}

// OpenRepository opens a read-only Repository handle for id, fetching it
// first if necessary. Used by callers (e.g. the `revision` requirement
// path) that need to validate a revision before binding it.
func (sm *SourceManager) OpenRepository(id Identity) (Repository, error) {
	provider, loc, err := sm.providerFor(id)
	if err != nil {
		return nil, err
	}
	dest := sm.cache.dirFor(id)
	if exists, _ := provider.Exists(dest); !exists {
		if err := provider.Fetch(loc, dest); err != nil {
			return nil, err
		}
	}
	return provider.Open(dest)
}

// SyncAll brings every registered Identity fully up to date concurrently,
// using the bounded worker pool (spec §5 "Scheduling model": "repository
// fetches... happen concurrently via the pool").
func (sm *SourceManager) SyncAll(ctx context.Context) error {
	sm.mu.Lock()
	ids := make([]Identity, 0, len(sm.locations))
	for id := range sm.locations {
		ids = append(ids, id)
	}
	sm.mu.Unlock()

	jobs := make([]workerpool.Job, len(ids))
	for i, id := range ids {
		id := id
		jobs[i] = func(ctx context.Context) error {
			_, err := sm.cache.Checkout(id, State{})
			return err
		}
	}
	return sm.pool.Run(ctx, jobs)
}

// ExportProject checks out id at the given State and copies that tree into
// destDir, under the checkout directory's base name.
func (sm *SourceManager) ExportProject(id Identity, at State, destDir string) error {
	path, err := sm.cache.Checkout(id, at)
	if err != nil {
		return err
	}
	return sm.cache.EditWorkingCopy(id, filepath.Clean(destDir+"/"+filepath.Base(path)))
}
