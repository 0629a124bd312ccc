// Package registry holds the process-scoped cache of scanned component
// modules.
//
// Entries are keyed by the resolved absolute path of the source file. The
// loader evicts exactly the path it is asked to check before rescanning it,
// while sibling modules loaded to satisfy that check stay cached. Evict only
// ever touches a single key. The cache is bounded: once it is full, adding a
// module displaces the least recently used entry, which may be a dependency
// of another module. A displaced dependency is rescanned on its next load,
// and watchers see an EventTypeDisplaced event for it. Tests build an
// isolated registry per test.
package registry

import (
	"path/filepath"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/conneroisu/templaudit/internal/types"
)

// DefaultSize is the number of modules kept when no size is configured.
const DefaultSize = 256

// ModuleRegistry caches scanned modules by resolved path.
type ModuleRegistry struct {
	cache    *lru.Cache[string, *types.ModuleInfo]
	size     int
	adding   sync.Mutex
	mutex    sync.RWMutex
	watchers []chan ModuleEvent
}

// ModuleEvent represents a change in the module registry
type ModuleEvent struct {
	Type      EventType
	Path      string
	Module    *types.ModuleInfo
	Timestamp time.Time
}

// EventType represents the type of module event
type EventType int

const (
	EventTypeAdded EventType = iota
	EventTypeUpdated
	EventTypeEvicted
	// EventTypeDisplaced marks a module dropped to make room for another
	EventTypeDisplaced
)

// String returns the event name used in logs.
func (e EventType) String() string {
	switch e {
	case EventTypeAdded:
		return "added"
	case EventTypeUpdated:
		return "updated"
	case EventTypeEvicted:
		return "evicted"
	case EventTypeDisplaced:
		return "displaced"
	default:
		return "unknown"
	}
}

// NewModuleRegistry creates a registry holding at most size modules. A
// non-positive size selects DefaultSize.
func NewModuleRegistry(size int) *ModuleRegistry {
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New[string, *types.ModuleInfo](size)
	if err != nil {
		// lru.New only fails for non-positive sizes.
		panic(err)
	}
	return &ModuleRegistry{
		cache:    cache,
		size:     size,
		watchers: make([]chan ModuleEvent, 0),
	}
}

// Key normalizes path into the form used as a registry key.
func Key(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return filepath.Clean(abs)
	}
	return filepath.Clean(path)
}

// Add stores module under its path, replacing any previous entry.
func (r *ModuleRegistry) Add(module *types.ModuleInfo) {
	key := Key(module.Path)

	r.adding.Lock()
	eventType := EventTypeAdded
	if r.cache.Contains(key) {
		eventType = EventTypeUpdated
	}
	var displaced *ModuleEvent
	if eventType == EventTypeAdded && r.cache.Len() >= r.size {
		if oldKey, oldModule, ok := r.cache.RemoveOldest(); ok {
			displaced = &ModuleEvent{Type: EventTypeDisplaced, Path: oldKey, Module: oldModule, Timestamp: time.Now()}
		}
	}
	r.cache.Add(key, module)
	r.adding.Unlock()

	if displaced != nil {
		r.notify(*displaced)
	}
	r.notify(ModuleEvent{Type: eventType, Path: key, Module: module, Timestamp: time.Now()})
}

// Get retrieves a module by path.
func (r *ModuleRegistry) Get(path string) (*types.ModuleInfo, bool) {
	return r.cache.Get(Key(path))
}

// Evict drops the entry for path alone and reports whether one existed.
func (r *ModuleRegistry) Evict(path string) bool {
	key := Key(path)
	module, ok := r.cache.Peek(key)
	if !ok {
		return false
	}
	r.cache.Remove(key)

	r.notify(ModuleEvent{Type: EventTypeEvicted, Path: key, Module: module, Timestamp: time.Now()})
	return true
}

// Len returns the number of cached modules.
func (r *ModuleRegistry) Len() int {
	return r.cache.Len()
}

// Paths returns the cached module paths in sorted order.
func (r *ModuleRegistry) Paths() []string {
	paths := r.cache.Keys()
	sort.Strings(paths)
	return paths
}

// Dependents returns the paths of cached modules with a component that
// renders one of the components declared by the module at path.
func (r *ModuleRegistry) Dependents(path string) []string {
	targetKey := Key(path)
	target, ok := r.cache.Peek(targetKey)
	if !ok {
		return nil
	}

	declared := make(map[string]bool, len(target.Components))
	for _, c := range target.Components {
		declared[c.Name] = true
	}

	var dependents []string
	for _, key := range r.cache.Keys() {
		if key == targetKey {
			continue
		}
		module, ok := r.cache.Peek(key)
		if !ok || filepath.Dir(module.Path) != filepath.Dir(target.Path) {
			continue
		}
		if dependsOn(module, declared) {
			dependents = append(dependents, key)
		}
	}
	sort.Strings(dependents)
	return dependents
}

func dependsOn(module *types.ModuleInfo, names map[string]bool) bool {
	for _, c := range module.Components {
		for _, dep := range c.Dependencies {
			if names[dep] {
				return true
			}
		}
	}
	return false
}

// Watch returns a channel that receives module events
func (r *ModuleRegistry) Watch() <-chan ModuleEvent {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan ModuleEvent, 100)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (r *ModuleRegistry) UnWatch(ch <-chan ModuleEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, watcher := range r.watchers {
		if watcher == ch {
			close(watcher)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
}

func (r *ModuleRegistry) notify(event ModuleEvent) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, watcher := range r.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}
