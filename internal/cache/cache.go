package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
)

const (
	cacheVersion   = 2
	DefaultTTL     = 30 * 24 * time.Hour
	appDirName     = "overlyric"
	lyricsDirName  = "lyrics"
	entryExtension = ".bin"
)

var (
	ErrCacheMiss    = errors.New("cache miss")
	ErrCacheExpired = errors.New("cache expired")
	ErrCacheCorrupt = errors.New("cache corrupt")
)

// Entry is one cached transcript, keyed by "{title}-{artist}".
type Entry struct {
	Version      uint8
	Key          string
	CatalogID    string
	TrackName    string
	ArtistName   string
	AlbumName    string
	Duration     time.Duration
	Instrumental bool
	SyncedLyrics string
	SyncOffset   time.Duration
	CreatedAt    int64
	ExpiresAt    int64
}

type DiskCache struct {
	basePath string
	ttl      time.Duration
	now      func() time.Time
	mu       sync.RWMutex
	memCache map[string]*Entry
}

// DefaultDir is $XDG_CACHE_HOME/overlyric/lyrics.
func DefaultDir() string {
	return filepath.Join(xdg.CacheHome, appDirName, lyricsDirName)
}

// New opens (and creates) a cache rooted at dir. An empty dir gives a
// memory-only cache.
func New(dir string, ttl time.Duration) (*DiskCache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &DiskCache{
		basePath: dir,
		ttl:      ttl,
		now:      time.Now,
		memCache: make(map[string]*Entry),
	}

	if dir == "" {
		return c, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *DiskCache) Dir() string {
	return c.basePath
}

func generateKey(key string) string {
	hash := sha256.Sum256([]byte(strings.ToLower(key)))
	return hex.EncodeToString(hash[:12])
}

func (c *DiskCache) getFilePath(hashed string) string {
	if c.basePath == "" {
		return ""
	}
	return filepath.Join(c.basePath, hashed+entryExtension)
}

func (c *DiskCache) Get(key string) (*Entry, error) {
	if key == "" {
		return nil, ErrCacheMiss
	}

	hashed := generateKey(key)
	now := c.now().Unix()

	c.mu.RLock()
	entry, exists := c.memCache[hashed]
	c.mu.RUnlock()

	if exists {
		if entry.ExpiresAt > now {
			return cloneEntry(entry), nil
		}
		c.mu.Lock()
		delete(c.memCache, hashed)
		c.mu.Unlock()
	}

	if c.basePath == "" {
		return nil, ErrCacheMiss
	}

	filePath := c.getFilePath(hashed)
	entry, err := c.readFromDisk(filePath)
	if err != nil {
		return nil, err
	}

	if entry.ExpiresAt <= now {
		_ = os.Remove(filePath)
		return nil, ErrCacheExpired
	}

	c.mu.Lock()
	c.memCache[hashed] = entry
	c.mu.Unlock()

	return cloneEntry(entry), nil
}

func (c *DiskCache) Set(key string, entry *Entry) error {
	if key == "" || entry == nil {
		return errors.New("invalid cache entry")
	}

	hashed := generateKey(key)

	stored := cloneEntry(entry)
	now := c.now()
	stored.Version = cacheVersion
	stored.Key = key
	stored.CreatedAt = now.Unix()
	stored.ExpiresAt = now.Add(c.ttl).Unix()

	c.mu.Lock()
	c.memCache[hashed] = stored
	c.mu.Unlock()

	if c.basePath == "" {
		return nil
	}
	return c.writeToDisk(c.getFilePath(hashed), stored)
}

func (c *DiskCache) Delete(key string) error {
	if key == "" {
		return errors.New("empty cache key")
	}

	hashed := generateKey(key)

	c.mu.Lock()
	delete(c.memCache, hashed)
	c.mu.Unlock()

	if c.basePath == "" {
		return nil
	}

	err := os.Remove(c.getFilePath(hashed))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (c *DiskCache) readFromDisk(filePath string) (*Entry, error) {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	defer file.Close()

	var entry Entry
	if err := gob.NewDecoder(file).Decode(&entry); err != nil {
		return nil, ErrCacheCorrupt
	}

	// older layouts are dropped rather than migrated
	if entry.Version != cacheVersion {
		_ = os.Remove(filePath)
		return nil, ErrCacheCorrupt
	}

	return &entry, nil
}

func (c *DiskCache) writeToDisk(filePath string, entry *Entry) error {
	// temp file + rename so readers never see a partial entry
	tmpPath := filePath + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	if err := gob.NewEncoder(file).Encode(entry); err != nil {
		file.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if err := file.Sync(); err != nil {
		file.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, filePath)
}

func (c *DiskCache) Clear() error {
	c.mu.Lock()
	c.memCache = make(map[string]*Entry)
	c.mu.Unlock()

	return c.eachFile(func(path string, _ os.DirEntry) {
		_ = os.Remove(path)
	})
}

// Prune removes expired and unreadable entries and reports how many went.
func (c *DiskCache) Prune() (int, error) {
	pruned := 0
	now := c.now().Unix()

	err := c.eachFile(func(path string, _ os.DirEntry) {
		entry, err := c.readFromDisk(path)
		if err != nil || entry.ExpiresAt <= now {
			_ = os.Remove(path)
			pruned++
		}
	})
	return pruned, err
}

func (c *DiskCache) Stats() (count int, sizeBytes int64, err error) {
	err = c.eachFile(func(_ string, dirEntry os.DirEntry) {
		info, err := dirEntry.Info()
		if err != nil {
			return
		}
		count++
		sizeBytes += info.Size()
	})
	return count, sizeBytes, err
}

func (c *DiskCache) ListAll() ([]*Entry, error) {
	var result []*Entry
	err := c.eachFile(func(path string, _ os.DirEntry) {
		entry, err := c.readFromDisk(path)
		if err != nil {
			return
		}
		result = append(result, entry)
	})
	return result, err
}

func (c *DiskCache) eachFile(fn func(path string, entry os.DirEntry)) error {
	if c.basePath == "" {
		return nil
	}

	entries, err := os.ReadDir(c.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), entryExtension) {
			continue
		}
		fn(filepath.Join(c.basePath, entry.Name()), entry)
	}
	return nil
}

func cloneEntry(e *Entry) *Entry {
	copied := *e
	return &copied
}
