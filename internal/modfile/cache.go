package modfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"

	"irlower/internal/config"
	"irlower/internal/diag"
	"irlower/internal/ir"
	"irlower/internal/serial"
	"irlower/internal/source"
	"irlower/internal/version"
)

// Current schema version - increment when the envelope format changes
const cacheSchemaVersion uint16 = 1

// ErrNoModule is returned by KeyOf when the unit has no such module.
var ErrNoModule = errors.New("modfile: module not found")

// Key addresses one cached module: its name and the structural hash of its
// scope at the time it was stored.
type Key struct {
	Name string
	Hash ir.Digest
}

func (k Key) String() string {
	return k.Name + "@" + k.Hash.String()[:12]
}

// KeyOf computes the cache key of module name in u.
func KeyOf(u *ir.Unit, name string) (Key, error) {
	id, ok := u.ResolveLocal(u.Global, name)
	if !ok {
		return Key{}, fmt.Errorf("%w: %q", ErrNoModule, name)
	}
	mod, ok := u.Symbol(id).Data.(*ir.ModuleData)
	if !ok {
		return Key{}, fmt.Errorf("%w: %q is a %s", ErrNoModule, name, u.Symbol(id).Kind)
	}
	return Key{Name: name, Hash: u.StructuralHash(mod.Scope)}, nil
}

// envelope wraps a modfile on disk.
type envelope struct {
	// Schema version for safe invalidation when format changes
	Schema  uint16
	Version string
	Name    string
	Hash    ir.Digest
	Format  uint8
	Blob    []byte
}

// Cache хранит modfile по ключу (имя модуля, структурный хеш).
// Thread-safe for concurrent access.
type Cache struct {
	mu     sync.RWMutex
	dir    string
	format Format
	mem    map[Key][]byte

	repMu    sync.Mutex
	reporter diag.Reporter
}

// Open returns a cache rooted at dir. reporter may be nil.
func Open(dir string, f Format, reporter diag.Reporter) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("modfile: cache: %w", err)
	}
	return &Cache{dir: dir, format: f, mem: make(map[Key][]byte), reporter: reporter}, nil
}

// OpenConfig opens the cache described by the [cache] section.
func OpenConfig(cfg config.Cache, reporter diag.Reporter) (*Cache, error) {
	f := FormatBinary
	if cfg.Text {
		f = FormatText
	}
	return Open(cfg.Dir, f, reporter)
}

// Dir returns the cache root.
func (c *Cache) Dir() string { return c.dir }

func (c *Cache) pathFor(k Key) string {
	// Для удобства очистки - подкаталог "mods".
	return filepath.Join(c.dir, "mods", k.Name+"-"+k.Hash.String()+".mp")
}

func (c *Cache) report(sev diag.Severity, code diag.Code, msg string) {
	if c.reporter == nil {
		return
	}
	c.repMu.Lock()
	defer c.repMu.Unlock()
	diag.NewReportBuilder(c.reporter, sev, code, source.Span{}, msg).Emit()
}

// Put stores module name of u and returns its key.
func (c *Cache) Put(u *ir.Unit, name string, locs *source.Locations) (Key, error) {
	key, err := KeyOf(u, name)
	if err != nil {
		return Key{}, err
	}
	var blob bytes.Buffer
	if err := SaveFormat(&blob, u, locs, c.format); err != nil {
		return Key{}, err
	}
	data, err := msgpack.Marshal(&envelope{
		Schema:  cacheSchemaVersion,
		Version: version.Version,
		Name:    key.Name,
		Hash:    key.Hash,
		Format:  uint8(c.format),
		Blob:    blob.Bytes(),
	})
	if err != nil {
		return Key{}, fmt.Errorf("modfile: cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := writeAtomic(c.pathFor(key), data); err != nil {
		return Key{}, fmt.Errorf("modfile: cache: %w", err)
	}
	c.mem[key] = data
	return key, nil
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return err
	}
	// после Rename файла уже нет, ошибку игнорируем
	defer func() { _ = os.Remove(f.Name()) }()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(f.Name(), path)
}

func (c *Cache) read(key Key) ([]byte, bool, error) {
	c.mu.RLock()
	data, ok := c.mem[key]
	c.mu.RUnlock()
	if ok {
		return data, true, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("modfile: cache: %w", err)
	}
	c.mem[key] = data
	return data, true, nil
}

// Get loads the module stored under key into u. A missing entry is
// reported as a miss; a damaged or stale one is an error, after which u
// must be discarded.
func (c *Cache) Get(key Key, u *ir.Unit) (*source.Locations, bool, error) {
	data, ok, err := c.read(key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		c.report(diag.SevNote, diag.CacheMiss, "module "+key.String()+" is not cached")
		return nil, false, nil
	}
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		err = fmt.Errorf("modfile: cache: %s: %w: %v", key, serial.ErrMalformed, err)
		c.report(diag.SevError, diag.CacheMalformed, err.Error())
		return nil, false, err
	}
	if env.Schema != cacheSchemaVersion || env.Version != version.Version {
		err := fmt.Errorf("modfile: cache: %s: %w: schema %d version %q", key, ErrVersion, env.Schema, env.Version)
		c.report(diag.SevError, diag.CacheVersionMismatch, err.Error())
		return nil, false, err
	}
	if env.Name != key.Name || env.Hash != key.Hash {
		err := fmt.Errorf("modfile: cache: %s: %w: entry holds %s", key, ErrHeader, Key{Name: env.Name, Hash: env.Hash})
		c.report(diag.SevError, diag.CacheMalformed, err.Error())
		return nil, false, err
	}
	locs, err := LoadFormat(bytes.NewReader(env.Blob), u, Format(env.Format))
	if err != nil {
		c.report(diag.SevError, codeFor(err), key.String()+": "+err.Error())
		return nil, false, err
	}
	return locs, true, nil
}

func codeFor(err error) diag.Code {
	switch {
	case errors.Is(err, ir.ErrDuplicate):
		return diag.SymDuplicate
	case errors.Is(err, ErrVersion):
		return diag.CacheVersionMismatch
	case errors.Is(err, serial.ErrTruncated):
		return diag.CacheTruncated
	}
	return diag.CacheMalformed
}

// LoadOrBuild loads key into a fresh unit of ctx. On a miss, or when the
// entry cannot be used, it falls back to build and stores the result.
func (c *Cache) LoadOrBuild(key Key, ctx *ir.Context, build func(u *ir.Unit) (*source.Locations, error)) (*ir.Unit, *source.Locations, error) {
	u := ir.NewUnit(ctx)
	locs, ok, err := c.Get(key, u)
	if ok {
		return u, locs, nil
	}
	if err != nil {
		c.report(diag.SevWarning, diag.CacheFallback, "rebuilding "+key.Name+" after cache error")
	}
	u = ir.NewUnit(ctx)
	locs, err = build(u)
	if err != nil {
		return nil, nil, err
	}
	if _, err := c.Put(u, key.Name, locs); err != nil {
		return nil, nil, err
	}
	return u, locs, nil
}

// Loaded is one result of LoadMany. Unit and Locs are nil on a miss.
type Loaded struct {
	Key  Key
	Hit  bool
	Unit *ir.Unit
	Locs *source.Locations
}

// LoadMany loads independent modules into separate units concurrently, at
// most jobs at a time (GOMAXPROCS when jobs <= 0). Every unit draws its
// scope counters from ictx, so counters stay unique across the results; a
// nil ictx gets a fresh context shared by this call. Results keep the order
// of keys. The first hard error cancels the remaining loads.
func (c *Cache) LoadMany(ctx context.Context, ictx *ir.Context, keys []Key, jobs int) ([]Loaded, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	if ictx == nil {
		ictx = ir.NewContext()
	}
	// индексы уникальны для каждой горутины, мьютекс не нужен
	results := make([]Loaded, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(keys)))
	for i, key := range keys {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			u := ir.NewUnit(ictx)
			locs, ok, err := c.Get(key, u)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			results[i] = Loaded{Key: key, Hit: ok}
			if ok {
				results[i].Unit = u
				results[i].Locs = locs
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// DropAll invalidates the cache, useful after format changes.
func (c *Cache) DropAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.mem)
	// тривиально: переименуем каталог и удалим
	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.RemoveAll(old); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0o755)
}
