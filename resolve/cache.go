package resolve

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
	shutil "github.com/termie/go-shutil"
	flock "github.com/theckman/go-flock"
)

// Cache is the content-addressed on-disk store of fetched repositories
// (spec §4.E). First access for an Identity clones into the cache under
// a directory named by the identity hash; subsequent accesses do an
// incremental fetch. A per-identity advisory file lock (backed by
// github.com/theckman/go-flock) guards the fetch so concurrent callers
// wait rather than race two clones into the same directory.
type Cache struct {
	root string

	mu       sync.Mutex
	tagCache map[Identity][]SemVersion // memoized per process after first call
	providerFor func(Identity) (Provider, Location, error)
}

// NewCache returns a Cache rooted at dir (typically
// "<package>/.build/checkouts" per spec §6 "Persisted state layout").
// resolveProvider maps an Identity back to the Provider and Location it
// should be fetched through; the Source Manager supplies this.
func NewCache(dir string, resolveProvider func(Identity) (Provider, Location, error)) *Cache {
	return &Cache{
		root:        dir,
		tagCache:    make(map[Identity][]SemVersion),
		providerFor: resolveProvider,
	}
}

func (c *Cache) dirFor(id Identity) string {
	return filepath.Join(c.root, id.Hash())
}

func (c *Cache) lockPath(id Identity) string {
	return c.dirFor(id) + ".lock"
}

// withLock acquires the per-identity exclusive lock, creating the cache
// root and the lock file's parent if needed, runs fn, and always
// releases. Lock acquisition honors the configurable timeout from spec
// §5 "Timeouts", failing with ResourceBusy if it cannot be acquired in
// time.
func (c *Cache) withLock(id Identity, timeout time.Duration, fn func() error) error {
	if err := os.MkdirAll(c.root, 0755); err != nil {
		return errors.Wrap(err, "create checkout cache root")
	}

	fl := flock.NewFlock(c.lockPath(id))
	locked, err := fl.TryLockTimeout(timeout)
	if err != nil {
		return errors.Wrap(err, "acquire checkout cache lock")
	}
	if !locked {
		return &resourceBusyError{resource: "checkout cache: " + DisplayName(id)}
	}
	defer fl.Unlock()

	return fn()
}

type resourceBusyError struct{ resource string }

func (e *resourceBusyError) Error() string { return "resource busy: " + e.resource }

// Checkout ensures id's repository is present in the cache at state
// `at`, fetching or incrementally updating it first, and returns the
// path to the read-only cached checkout.
//
// Ordering is strict, per spec §5 "Ordering guarantees": fetch happens
// before tags are listed, which happens before any checkout of a
// specific state.
func (c *Cache) Checkout(id Identity, at State) (string, error) {
	provider, loc, err := c.providerFor(id)
	if err != nil {
		return "", err
	}

	dest := c.dirFor(id)
	staging := dest + ".staging"

	err = c.withLock(id, defaultLockTimeout, func() error {
		return retryFetch(func() error {
			exists, err := provider.Exists(dest)
			if err != nil {
				return err
			}
			if exists {
				return provider.Fetch(loc, dest)
			}

			// Clone into a staging directory first and atomically rename
			// on success, so a cancelled or failed fetch leaves the cache
			// in its previous (absent) state rather than a half-cloned
			// directory (spec §5 "Cancellation": "atomic rename of a
			// staging directory on success").
			os.RemoveAll(staging)
			if err := provider.Fetch(loc, staging); err != nil {
				os.RemoveAll(staging)
				return err
			}
			return os.Rename(staging, dest)
		})
	})
	if err != nil {
		return "", err
	}

	if _, err := provider.WorkingCopy(dest, at); err != nil {
		return "", err
	}
	return dest, nil
}

// Tags returns id's available versions, memoized per process after the
// first call (spec §4.E: "tags(Identity) -> [Version] (memoized per
// process after first call)").
func (c *Cache) Tags(id Identity) ([]SemVersion, error) {
	c.mu.Lock()
	if cached, ok := c.tagCache[id]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	provider, loc, err := c.providerFor(id)
	if err != nil {
		return nil, err
	}

	dest := c.dirFor(id)
	exists, err := provider.Exists(dest)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := provider.Fetch(loc, dest); err != nil {
			return nil, err
		}
	}

	repo, err := provider.Open(dest)
	if err != nil {
		return nil, err
	}
	tags, err := repo.Tags()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.tagCache[id] = tags
	c.mu.Unlock()
	return tags, nil
}

// EditWorkingCopy materializes a separate, mutable "edit mode" checkout
// (spec §4.E "Lifecycle": "working copies for edit mode are separate
// mutable clones"), copying the read-only cached tree into dest with
// github.com/termie/go-shutil rather than re-cloning from the network.
func (c *Cache) EditWorkingCopy(id Identity, dest string) error {
	src := c.dirFor(id)
	if _, err := os.Stat(src); err != nil {
		return errors.Wrapf(err, "identity %s has no cached checkout", id)
	}
	if err := os.RemoveAll(dest); err != nil {
		return errors.Wrap(err, "clear edit-mode destination")
	}
	return shutil.CopyTree(src, dest, nil)
}

// dirState is a lightweight snapshot of a cached checkout's directory
// structure. Only deriveState builds one.
type dirState struct {
	Files []string
	Dirs  []string
}

// deriveState walks root with godirwalk (faster than filepath.Walk for
// bulk scans) and returns the files and directories found, relative to
// root. It has no caller in this module.
func deriveState(root string) (dirState, error) {
	var st dirState
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path == root {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if de.IsDir() {
				st.Dirs = append(st.Dirs, rel)
			} else {
				st.Files = append(st.Files, rel)
			}
			return nil
		},
		Unsorted: false,
	})
	if err != nil {
		return dirState{}, errors.Wrap(err, "derive checkout filesystem state")
	}
	return st, nil
}
