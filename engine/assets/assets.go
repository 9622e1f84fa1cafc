// Package assets resolves shader names to SPIR-V. Precompiled .spv files in
// the shader directory take precedence; the compute shaders also ship as
// embedded WGSL that is compiled on demand.
package assets

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tigrazone/gkNextRenderer/engine/assets/loaders"
	"github.com/tigrazone/gkNextRenderer/engine/core"
)

//go:embed shaders/*.wgsl
var embedded embed.FS

// embeddedSources maps shader names to their WGSL fallback.
var embeddedSources = map[string]string{
	"Accumulate.comp": "shaders/accumulate.wgsl",
	"Denoise.comp":    "shaders/denoise.wgsl",
	"Compose.comp":    "shaders/compose.wgsl",
}

var ErrShaderNotFound = errors.New("shader not found")

type ShaderKind int

const (
	ShaderKindNone ShaderKind = iota
	ShaderKindSPIRV
	ShaderKindWGSL
)

func (k ShaderKind) String() string {
	switch k {
	case ShaderKindSPIRV:
		return "spirv"
	case ShaderKindWGSL:
		return "wgsl"
	default:
		return "none"
	}
}

type AssetInfo struct {
	Path       string
	Kind       ShaderKind
	LastLoaded time.Time
}

// ShaderLibrary indexes the shader directory and caches compiled modules.
type ShaderLibrary struct {
	dir     string
	assets  map[string]AssetInfo
	cache   map[string][]uint32
	loaders map[ShaderKind]Loader

	mutex sync.RWMutex
	dirty atomic.Bool

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewShaderLibrary indexes dir. A missing directory is not an error; only the
// embedded shaders are available then.
func NewShaderLibrary(dir string) (*ShaderLibrary, error) {
	l := &ShaderLibrary{
		dir:    dir,
		assets: make(map[string]AssetInfo),
		cache:  make(map[string][]uint32),
		loaders: map[ShaderKind]Loader{
			ShaderKindSPIRV: &loaders.SPIRVLoader{},
			ShaderKindWGSL:  &loaders.WGSLLoader{FS: embedded},
		},
	}
	for name, path := range embeddedSources {
		l.assets[name] = AssetInfo{Path: path, Kind: ShaderKindWGSL}
	}
	if dir == "" {
		return l, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		core.LogWarn("shader directory %s does not exist; using embedded shaders only", dir)
		return l, nil
	}
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !e.IsDir() {
			l.handleFileEvent(filepath.Join(dir, e.Name()))
		}
	}
	return l, nil
}

// Watch starts reloading shaders when files in the directory change.
// Changed reports such reloads.
func (l *ShaderLibrary) Watch() error {
	if l.watcher != nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(l.dir); err != nil {
		w.Close()
		return err
	}
	l.watcher = w
	l.done = make(chan struct{})
	l.wg.Add(1)
	go l.start()
	return nil
}

func (l *ShaderLibrary) start() {
	defer l.wg.Done()
	for {
		select {
		case e, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if l.handleFileEvent(e.Name) {
					l.dirty.Store(true)
				}
			}
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				if l.removeAsset(e.Name) {
					l.dirty.Store(true)
				}
			}

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			core.LogError("%s", err)

		case <-l.done:
			return
		}
	}
}

func shaderName(path string) (string, bool) {
	base := filepath.Base(path)
	if filepath.Ext(base) != ".spv" {
		return "", false
	}
	return strings.TrimSuffix(base, ".spv"), true
}

// handleFileEvent indexes a new or modified .spv file and drops its cached
// module.
func (l *ShaderLibrary) handleFileEvent(path string) bool {
	name, ok := shaderName(path)
	if !ok {
		return false
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.assets[name] = AssetInfo{Path: path, Kind: ShaderKindSPIRV}
	delete(l.cache, name)
	core.LogDebug("shader %s indexed from %s", name, path)
	return true
}

// removeAsset forgets a deleted file, falling back to the embedded source.
func (l *ShaderLibrary) removeAsset(path string) bool {
	name, ok := shaderName(path)
	if !ok {
		return false
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	delete(l.cache, name)
	if src, ok := embeddedSources[name]; ok {
		l.assets[name] = AssetInfo{Path: src, Kind: ShaderKindWGSL}
	} else {
		delete(l.assets, name)
	}
	return true
}

// SPIRV returns the module for name, loading and caching it on first use.
func (l *ShaderLibrary) SPIRV(name string) ([]uint32, error) {
	l.mutex.RLock()
	words, cached := l.cache[name]
	asset, exists := l.assets[name]
	l.mutex.RUnlock()
	if cached {
		return words, nil
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrShaderNotFound, name)
	}

	loader, ok := l.loaders[asset.Kind]
	if !ok {
		return nil, fmt.Errorf("no loader registered for %s shaders", asset.Kind)
	}
	words, err := loader.Load(asset.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load shader %s: %w", name, err)
	}

	l.mutex.Lock()
	asset.LastLoaded = time.Now()
	l.assets[name] = asset
	l.cache[name] = words
	l.mutex.Unlock()
	return words, nil
}

// Preload loads every known shader on a pool of workers so the first frame
// does not wait on the WGSL compiler. Failures are returned together; the
// shaders that loaded stay cached.
func (l *ShaderLibrary) Preload(workers int) error {
	js, err := core.NewJobSystem(workers, workers)
	if err != nil {
		return err
	}
	var (
		mu   sync.Mutex
		errs []error
	)
	for _, name := range l.Names() {
		name := name
		js.Submit(core.Job{
			Name: "load " + name,
			Run: func() error {
				_, err := l.SPIRV(name)
				return err
			},
			OnFailure: func(err error) {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			},
		})
	}
	js.Wait()
	if err := js.Shutdown(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// Info describes where name is loaded from.
func (l *ShaderLibrary) Info(name string) (AssetInfo, bool) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	a, ok := l.assets[name]
	return a, ok
}

// Names lists every resolvable shader.
func (l *ShaderLibrary) Names() []string {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	out := make([]string, 0, len(l.assets))
	for name := range l.assets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Changed reports whether a watched shader changed since the last call.
func (l *ShaderLibrary) Changed() bool {
	return l.dirty.Swap(false)
}

func (l *ShaderLibrary) Close() error {
	if l.watcher == nil {
		return nil
	}
	close(l.done)
	err := l.watcher.Close()
	l.wg.Wait()
	l.watcher = nil
	return err
}
