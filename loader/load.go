package loader

import (
	"encoding/base64"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/FlashLizard/os-pke-lab/asm"
	"github.com/FlashLizard/os-pke-lab/log"
	hclog "github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

type LoaderCache struct {
	mu sync.RWMutex

	cache *lru.ARCCache
}

func NewLoaderCache(size int) *LoaderCache {
	if size <= 0 {
		size = 16
	}

	cache, err := lru.NewARC(size)
	if err != nil {
		panic(err)
	}

	return &LoaderCache{cache: cache}
}

func (l *LoaderCache) Lookup(key string) (*asm.Image, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	val, ok := l.cache.Get(key)
	if !ok {
		return nil, false
	}

	return val.(*asm.Image), true
}

func (l *LoaderCache) Set(key string, img *asm.Image) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cache.Add(key, img)
}

func (l *LoaderCache) Len() int {
	return l.cache.Len()
}

func NewLoader(cache *LoaderCache) *Loader {
	return &Loader{
		L:     log.L.Named("loader"),
		cache: cache,
	}
}

// Loader turns program sources into images. Images are immutable once
// assembled, so identical sources share one cached image.
type Loader struct {
	L     hclog.Logger
	cache *LoaderCache
}

func (l *Loader) LoadFile(path string) (*asm.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	return l.Load(filepath.Base(path), f)
}

func (l *Loader) Load(name string, r io.Reader) (*asm.Image, error) {
	src, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", name)
	}

	var cacheKey string

	if l.cache != nil {
		sum := blake2b.Sum256(src)
		cacheKey = base64.URLEncoding.EncodeToString(sum[:])

		l.L.Debug("looking for cached image", "name", name, "key", cacheKey)

		if img, ok := l.cache.Lookup(cacheKey); ok {
			return img, nil
		}
	}

	img, err := asm.Assemble(name, src)
	if err != nil {
		return nil, err
	}

	if l.cache != nil {
		l.L.Debug("cached image", "name", name, "key", cacheKey)
		l.cache.Set(cacheKey, img)
	}

	return img, nil
}
