// Package shell serves the static status page from an in-memory cache.
package shell

import (
	"embed"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

//go:embed assets
var assets embed.FS

// Assets lists the request paths held in the cache.
var Assets = []string{"/", "/index.html", "/styles.css", "/app.js", "/manifest.json"}

// Embedded returns the bundled page files.
func Embedded() fs.FS {
	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		panic(err)
	}
	return sub
}

type entry struct {
	body        []byte
	contentType string
}

// Cache holds the shell assets keyed by request path.
type Cache struct {
	entries *lru.Cache[string, entry]
	logger  zerolog.Logger
}

// Install reads every asset from fsys into a new cache.
// A missing asset fails the whole install.
func Install(fsys fs.FS, logger zerolog.Logger) (*Cache, error) {
	entries, err := lru.New[string, entry](len(Assets))
	if err != nil {
		return nil, fmt.Errorf("failed to create asset cache: %w", err)
	}
	for _, p := range Assets {
		name := fileFor(p)
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to load asset %s: %w", p, err)
		}
		ctype := mime.TypeByExtension(path.Ext(name))
		if ctype == "" {
			ctype = http.DetectContentType(body)
		}
		entries.Add(p, entry{body: body, contentType: ctype})
	}
	c := &Cache{entries: entries, logger: logger.With().Str("component", "shell").Logger()}
	c.logger.Debug().Int("assets", entries.Len()).Msg("Shell installed")
	return c, nil
}

// Len returns the number of cached assets.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Handler answers GET requests for cached paths and hands everything else to next.
func (c *Cache) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		e, ok := c.entries.Get(r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", e.contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(e.body)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(e.body)
	})
}

func fileFor(p string) string {
	name := strings.TrimPrefix(p, "/")
	if name == "" {
		return "index.html"
	}
	return name
}
