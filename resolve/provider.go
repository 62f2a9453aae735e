package resolve

import (
	"os"
	"path/filepath"
	"strings"

	vcs "github.com/Masterminds/vcs"
	"github.com/pkg/errors"
)

// State is a repository's materialized position: a revision plus the
// optional branch name it was resolved from (spec §4.D: "State is
// (revision, optional branch)").
type State struct {
	Revision Revision
	Branch   Branch // empty if checked out at a bare revision or tag
}

// Repository is a read-only handle on a fetched source repository (spec
// §4.D). Repositories are shared read-only across callers; obtaining a
// mutable checkout goes through WorkingCopy instead.
type Repository interface {
	// Tags lists the repository's available semantic versions.
	Tags() ([]SemVersion, error)
	// ResolveBranch returns the current head revision of the named
	// branch.
	ResolveBranch(name string) (Revision, error)
	// ResolveRevision validates that rev exists in the repository.
	ResolveRevision(rev string) (Revision, error)
	// ResolveTag returns the revision a semantic-version tag points at.
	ResolveTag(v SemVersion) (Revision, error)
}

// WorkingCopy is a materialized checkout at a specific State (spec
// §4.D).
type WorkingCopy interface {
	Path() string
	State() State
}

// RetryableError is implemented by provider errors that the retry policy
// (spec §4.D "Retry policy") should retry; errors that don't implement it
// (authentication, not-found) fail immediately.
type RetryableError interface {
	error
	Retryable() bool
}

type transportError struct{ cause error }

func (e *transportError) Error() string    { return "transport error: " + e.cause.Error() }
func (e *transportError) Unwrap() error    { return e.cause }
func (e *transportError) Retryable() bool  { return true }

type authError struct{ cause error }

func (e *authError) Error() string   { return "authentication failed: " + e.cause.Error() }
func (e *authError) Unwrap() error   { return e.cause }
func (e *authError) Retryable() bool { return false }

type notFoundError struct{ cause error }

func (e *notFoundError) Error() string   { return "repository not found: " + e.cause.Error() }
func (e *notFoundError) Unwrap() error   { return e.cause }
func (e *notFoundError) Retryable() bool { return false }

// Provider is a pluggable repository backend, selected by a Location's
// scheme (spec §4.D). Implementations: git (remote and local VCS
// locations), plain local path, and an in-memory mock used by tests.
type Provider interface {
	// Fetch clones (first call) or incrementally updates (subsequent
	// calls) the repository at loc into destination.
	Fetch(loc Location, destination string) error
	// Open returns a read-only Repository handle on an already-fetched
	// destination.
	Open(destination string) (Repository, error)
	// WorkingCopy materializes a mutable checkout of destination at the
	// given State into a separate directory.
	WorkingCopy(destination string, at State) (WorkingCopy, error)
	// Exists reports whether destination already holds a fetched
	// repository.
	Exists(destination string) (bool, error)
}

// GitProvider backs remote-source-control and local-source-control
// locations with github.com/Masterminds/vcs's Git implementation (spec
// §4.D).
type GitProvider struct{}

func (GitProvider) Fetch(loc Location, destination string) error {
	exists, err := (GitProvider{}).Exists(destination)
	if err != nil {
		return err
	}
	if exists {
		repo, err := vcs.NewGitRepo(loc.Raw, destination)
		if err != nil {
			return classifyVCSErr(err)
		}
		if err := repo.Update(); err != nil {
			return classifyVCSErr(err)
		}
		return nil
	}

	repo, err := vcs.NewGitRepo(loc.Raw, destination)
	if err != nil {
		return classifyVCSErr(err)
	}
	if err := repo.Get(); err != nil {
		return classifyVCSErr(err)
	}
	return nil
}

func (GitProvider) Open(destination string) (Repository, error) {
	repo, err := vcs.NewGitRepo("", destination)
	if err != nil {
		return nil, classifyVCSErr(err)
	}
	return &gitRepository{repo: repo}, nil
}

func (GitProvider) WorkingCopy(destination string, at State) (WorkingCopy, error) {
	repo, err := vcs.NewGitRepo("", destination)
	if err != nil {
		return nil, classifyVCSErr(err)
	}

	target := string(at.Revision)
	if target == "" && at.Branch != "" {
		target = string(at.Branch)
	}
	if err := repo.UpdateVersion(target); err != nil {
		return nil, classifyVCSErr(err)
	}
	return &gitWorkingCopy{path: destination, state: at}, nil
}

func (GitProvider) Exists(destination string) (bool, error) {
	fi, err := os.Stat(destination)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "stat destination")
	}
	return fi.IsDir(), nil
}

type gitRepository struct {
	repo vcs.Repo
}

func (r *gitRepository) Tags() ([]SemVersion, error) {
	tags, err := r.repo.Tags()
	if err != nil {
		return nil, classifyVCSErr(err)
	}

	out := make([]SemVersion, 0, len(tags))
	for _, t := range tags {
		v, err := NewSemVersion(strings.TrimPrefix(t, "v"))
		if err != nil {
			continue // not every tag is a version; skip non-semver tags
		}
		out = append(out, v)
	}
	SortVersionsDescending(out)
	return out, nil
}

func (r *gitRepository) ResolveBranch(name string) (Revision, error) {
	if err := r.repo.UpdateVersion(name); err != nil {
		return "", classifyVCSErr(err)
	}
	rev, err := r.repo.Version()
	if err != nil {
		return "", classifyVCSErr(err)
	}
	return Revision(rev), nil
}

func (r *gitRepository) ResolveRevision(rev string) (Revision, error) {
	if !r.repo.IsReference(rev) {
		return "", &notFoundError{cause: errors.Errorf("no such revision %q", rev)}
	}
	return Revision(rev), nil
}

func (r *gitRepository) ResolveTag(v SemVersion) (Revision, error) {
	tag := "v" + v.String()
	if !r.repo.IsReference(tag) {
		tag = v.String()
	}
	if err := r.repo.UpdateVersion(tag); err != nil {
		return "", classifyVCSErr(err)
	}
	rev, err := r.repo.Version()
	if err != nil {
		return "", classifyVCSErr(err)
	}
	return Revision(rev), nil
}

type gitWorkingCopy struct {
	path  string
	state State
}

func (w *gitWorkingCopy) Path() string { return w.path }
func (w *gitWorkingCopy) State() State { return w.state }

func classifyVCSErr(err error) error {
	if err == nil {
		return nil
	}
	switch err.(type) {
	case *vcs.LocalError:
		return &notFoundError{cause: err}
	case *vcs.RemoteError:
		return &transportError{cause: err}
	default:
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "auth") || strings.Contains(msg, "permission denied") {
			return &authError{cause: err}
		}
		return &transportError{cause: err}
	}
}

// LocalPathProvider backs plain, unversioned filesystem-path locations
// (spec §3 "Package Reference": "local filesystem path"). Fetch is a
// no-op since the source already lives on disk; WorkingCopy is the
// original path itself, never copied, since a local-path dependency is
// meant to be edited in place.
type LocalPathProvider struct{}

func (LocalPathProvider) Fetch(loc Location, destination string) error {
	fi, err := os.Stat(loc.Raw)
	if err != nil {
		return errors.Wrap(err, "stat local package path")
	}
	if !fi.IsDir() {
		return errors.Errorf("local package path %q is not a directory", loc.Raw)
	}
	return nil
}

func (LocalPathProvider) Open(destination string) (Repository, error) {
	return localRepository{}, nil
}

func (LocalPathProvider) WorkingCopy(destination string, at State) (WorkingCopy, error) {
	return &localWorkingCopy{path: destination}, nil
}

func (LocalPathProvider) Exists(destination string) (bool, error) {
	fi, err := os.Stat(destination)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return fi.IsDir(), nil
}

type localRepository struct{}

func (localRepository) Tags() ([]SemVersion, error)               { return nil, nil }
func (localRepository) ResolveBranch(string) (Revision, error)     { return "", nil }
func (localRepository) ResolveRevision(s string) (Revision, error) { return Revision(s), nil }
func (localRepository) ResolveTag(SemVersion) (Revision, error)    { return "", nil }

type localWorkingCopy struct{ path string }

func (w *localWorkingCopy) Path() string { return w.path }
func (w *localWorkingCopy) State() State { return State{} }

// ProviderFor selects the backend Provider for a Location's kind (spec
// §4.D: "The provider is selected by location scheme").
func ProviderFor(kind LocationKind) (Provider, error) {
	switch kind {
	case LocationRemoteVCS, LocationLocalVCS:
		return GitProvider{}, nil
	case LocationLocalPath:
		return LocalPathProvider{}, nil
	case LocationRegistry:
		return nil, errors.New("registry locations are served by RegistryProvider, not ProviderFor")
	default:
		return nil, errors.Errorf("no provider for location kind %v", kind)
	}
}

// sanitizeDirName derives a filesystem-safe directory component from a
// raw location string, used when callers want a human-legible cache
// subdirectory name alongside the Identity hash.
func sanitizeDirName(raw string) string {
	r := strings.NewReplacer("://", "-", "/", "-", ":", "-", "@", "-")
	return filepath.Clean(r.Replace(raw))
}
