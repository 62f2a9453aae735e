package resolve

import (
	"sync"

	"github.com/pkg/errors"
)

// MockProvider is an in-memory Provider backend, named explicitly in
// spec §4.D as one of the three pluggable backends alongside git and
// local. It lets the resolver and Workspace Controller be exercised in
// tests without touching real network repositories, mirroring how gps's
// own test harness (solve_basic_test.go, bestiary_test.go) builds
// fixture dependency graphs.
type MockProvider struct {
	mu         sync.Mutex
	repos      map[string]*MockRepository // raw location -> fixture
	fetchedAt  map[string]string          // destination -> raw location
}

// NewMockProvider returns an empty MockProvider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		repos:     make(map[string]*MockRepository),
		fetchedAt: make(map[string]string),
	}
}

// MockRepository is a fixture repository: a fixed set of semantic-version
// tags and named branches, each mapped to a synthetic revision.
type MockRepository struct {
	Versions map[SemVersion]Revision
	Branches map[string]Revision
}

// AddRepository registers a fixture repository at the given raw location
// string (matching Location.Raw).
func (p *MockProvider) AddRepository(raw string, repo *MockRepository) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repos[raw] = repo
}

func (p *MockProvider) Fetch(loc Location, destination string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.repos[loc.Raw]; !ok {
		return &notFoundError{cause: errors.Errorf("no mock repository registered for %q", loc.Raw)}
	}
	p.fetchedAt[destination] = loc.Raw
	return nil
}

func (p *MockProvider) Open(destination string) (Repository, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	raw, ok := p.fetchedAt[destination]
	if !ok {
		return nil, errors.Errorf("no mock repository fetched at %q", destination)
	}
	return &mockRepoHandle{repo: p.repos[raw]}, nil
}

func (p *MockProvider) WorkingCopy(destination string, at State) (WorkingCopy, error) {
	return &mockWorkingCopy{path: destination, state: at}, nil
}

func (p *MockProvider) Exists(destination string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.fetchedAt[destination]
	return ok, nil
}

type mockRepoHandle struct{ repo *MockRepository }

func (h *mockRepoHandle) Tags() ([]SemVersion, error) {
	out := make([]SemVersion, 0, len(h.repo.Versions))
	for v := range h.repo.Versions {
		out = append(out, v)
	}
	SortVersionsDescending(out)
	return out, nil
}

func (h *mockRepoHandle) ResolveBranch(name string) (Revision, error) {
	rev, ok := h.repo.Branches[name]
	if !ok {
		return "", &notFoundError{cause: errors.Errorf("no such branch %q", name)}
	}
	return rev, nil
}

func (h *mockRepoHandle) ResolveRevision(rev string) (Revision, error) {
	return Revision(rev), nil
}

func (h *mockRepoHandle) ResolveTag(v SemVersion) (Revision, error) {
	rev, ok := h.repo.Versions[v]
	if !ok {
		return "", errors.Errorf("no such version %s", v)
	}
	return rev, nil
}

type mockWorkingCopy struct {
	path  string
	state State
}

func (w *mockWorkingCopy) Path() string { return w.path }
func (w *mockWorkingCopy) State() State { return w.state }
