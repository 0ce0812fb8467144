package platform

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"tmall-review-crawler/internal/crawler"
)

type Factory func() crawler.Runner

type entry struct {
	canonical string
	factory   Factory
}

var (
	mu      sync.RWMutex
	entries = map[string]entry{}
)

// Register binds a platform name and its aliases to a runner factory.
// Duplicate keys panic at init time.
func Register(name string, aliases []string, factory Factory) {
	if factory == nil {
		panic("platform: factory is nil")
	}
	canonical := normalize(name)
	if canonical == "" {
		panic("platform: empty name")
	}
	keys := append([]string{name}, aliases...)
	mu.Lock()
	defer mu.Unlock()
	for _, k := range keys {
		n := normalize(k)
		if n == "" {
			continue
		}
		if _, exists := entries[n]; exists {
			panic(fmt.Sprintf("platform: duplicate register: %s", n))
		}
		entries[n] = entry{canonical: canonical, factory: factory}
	}
}

func New(name string) (crawler.Runner, error) {
	mu.RLock()
	e, ok := entries[normalize(name)]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown platform: %s (available: %s)", name, strings.Join(Names(), ", "))
	}
	return e.factory(), nil
}

func Exists(name string) bool {
	mu.RLock()
	_, ok := entries[normalize(name)]
	mu.RUnlock()
	return ok
}

// Canonical maps an alias to the name it was registered under.
func Canonical(name string) string {
	mu.RLock()
	defer mu.RUnlock()
	if e, ok := entries[normalize(name)]; ok {
		return e.canonical
	}
	return ""
}

// Names lists canonical platform names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	uniq := map[string]struct{}{}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := uniq[e.canonical]; ok {
			continue
		}
		uniq[e.canonical] = struct{}{}
		out = append(out, e.canonical)
	}
	sort.Strings(out)
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
