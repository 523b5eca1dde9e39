package localize

import (
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/Yiling-J/theine-go"
	"golang.org/x/text/language"
	"sigs.k8s.io/yaml"

	"github.com/batchlane/batchlane/assets"
)

// DefaultBundle is the name of the bundle shipped with batchlane.
const DefaultBundle = "batchlane"

const (
	rootLocale       = "root"
	bundleExt        = ".yaml"
	defaultCacheSize = 10_000
)

type templates map[string]string

// Registry holds message bundles. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	bundles    map[string]map[language.Tag]templates
	generation uint64

	// cache maps generation/bundle/locale/code to the resolved template,
	// "" meaning not found.
	cache *theine.Cache[string, string]
}

// NewRegistry returns an empty Registry.
func NewRegistry() (*Registry, error) {
	cache, err := theine.NewBuilder[string, string](defaultCacheSize).Build()
	if err != nil {
		return nil, err
	}

	return &Registry{
		bundles: map[string]map[language.Tag]templates{},
		cache:   cache,
	}, nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry loaded with the bundles shipped in the binary.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := NewRegistry()
		if err != nil {
			panic(err)
		}
		sub, err := fs.Sub(assets.EmbedBundles, assets.BundleDir)
		if err != nil {
			panic(err)
		}
		if err := r.LoadFS(sub); err != nil {
			panic(err)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// Add registers the templates for bundle in locale, merging with any already
// registered for the same pair.
func (r *Registry) Add(bundle string, locale language.Tag, entries map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byLocale, ok := r.bundles[bundle]
	if !ok {
		byLocale = map[language.Tag]templates{}
		r.bundles[bundle] = byLocale
	}
	t, ok := byLocale[locale]
	if !ok {
		t = templates{}
		byLocale[locale] = t
	}
	for code, tmpl := range entries {
		t[code] = tmpl
	}
	r.generation++
}

// LoadFS reads every <bundle>/<locale>.yaml file found in fsys.
func (r *Registry) LoadFS(fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != bundleExt {
			return nil
		}

		bundle := path.Dir(p)
		if bundle == "." {
			return fmt.Errorf("bundle file %q must live in a bundle directory", p)
		}

		locale, err := ParseLocale(strings.TrimSuffix(path.Base(p), bundleExt))
		if err != nil {
			return fmt.Errorf("bundle file %q: %w", p, err)
		}

		b, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		var entries map[string]string
		if err := yaml.Unmarshal(b, &entries); err != nil {
			return fmt.Errorf("bundle file %q: %w", p, err)
		}

		r.Add(bundle, locale, entries)
		return nil
	})
}

// HasBundle reports whether any locale of bundle is registered.
func (r *Registry) HasBundle(bundle string) bool {
	if bundle == "" {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bundles[bundle]
	return ok
}

// Lookup finds the template for code in bundle, trying locale, then each of
// its parents, then the root locale.
func (r *Registry) Lookup(bundle string, locale language.Tag, code string) (string, bool) {
	r.mu.RLock()
	gen := r.generation
	r.mu.RUnlock()

	key := cacheKey(gen, bundle, locale, code)
	if tmpl, ok := r.cache.Get(key); ok {
		return tmpl, tmpl != ""
	}

	tmpl := r.resolve(bundle, locale, code)
	r.cache.Set(key, tmpl, 1)
	return tmpl, tmpl != ""
}

func (r *Registry) resolve(bundle string, locale language.Tag, code string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byLocale, ok := r.bundles[bundle]
	if !ok {
		return ""
	}

	for tag := locale; ; tag = tag.Parent() {
		if tmpl, ok := byLocale[tag][code]; ok {
			return tmpl
		}
		if tag == language.Und {
			return ""
		}
	}
}

func (r *Registry) Close() {
	r.cache.Close()
}

// ParseLocale parses a BCP 47 tag. "" and "root" mean the root locale.
func ParseLocale(s string) (language.Tag, error) {
	if s == "" || s == rootLocale {
		return language.Und, nil
	}
	return language.Parse(s)
}

func MustParseLocale(s string) language.Tag {
	tag, err := ParseLocale(s)
	if err != nil {
		panic(err)
	}
	return tag
}

func cacheKey(gen uint64, bundle string, locale language.Tag, code string) string {
	return strconv.FormatUint(gen, 10) + "/" + bundle + "/" + locale.String() + "/" + code
}
