package catalog

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dhowden/tag"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/alexplain/jukebox/internal/domain"
)

const _rescanDebounce = 500 * time.Millisecond

// mimeByExtension covers the types the page deals in; anything else is
// sniffed from content or left empty.
var mimeByExtension = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

var mimeByFileType = map[tag.FileType]string{
	tag.MP3:  "audio/mpeg",
	tag.M4A:  "audio/mp4",
	tag.FLAC: "audio/flac",
	tag.OGG:  "audio/ogg",
}

// LocalCatalog serves catalog listings from a music directory on disk,
// with the same wire shape the gateway produces. Listings are cached; a
// filesystem watcher drops the cache when anything under the root changes.
type LocalCatalog struct {
	logger *zap.Logger
	root   string

	mu      sync.Mutex
	cache   map[string][]domain.CatalogEntry
	watcher *fsnotify.Watcher

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewLocalCatalog creates a catalog rooted at the given directory
func NewLocalCatalog(logger *zap.Logger, root string) (*LocalCatalog, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve music dir: %w", err)
	}
	if info, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("music dir not accessible: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("music dir is not a directory: %s", abs)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(abs); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch music dir: %w", err)
	}

	c := &LocalCatalog{
		logger:  logger,
		root:    abs,
		cache:   make(map[string][]domain.CatalogEntry),
		watcher: watcher,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.watch()
	return c, nil
}

// List reads one directory under the music root
func (c *LocalCatalog) List(ctx context.Context, dir string) ([]domain.CatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rel := path.Clean("/" + strings.Trim(dir, "/"))
	if strings.Contains(rel, "..") {
		return nil, fmt.Errorf("invalid catalog path: %s", dir)
	}

	c.mu.Lock()
	cached, ok := c.cache[rel]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	full := filepath.Join(c.root, filepath.FromSlash(rel))
	dirents, err := os.ReadDir(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	entries := make([]domain.CatalogEntry, 0, len(dirents))
	for _, d := range dirents {
		entry := domain.CatalogEntry{
			Name:  d.Name(),
			Path:  path.Join(rel, d.Name()),
			IsDir: d.IsDir(),
		}
		if !d.IsDir() {
			entry.MimeType = c.mimeFor(filepath.Join(full, d.Name()))
		}
		entries = append(entries, entry)
	}

	// Watch listed subdirectories so release changes invalidate the cache too
	if err := c.watcher.Add(full); err != nil {
		c.logger.Warn("Failed to watch directory", zap.String("dir", full), zap.Error(err))
	}

	c.mu.Lock()
	c.cache[rel] = entries
	c.mu.Unlock()

	c.logger.Debug("Local listing scanned",
		zap.String("dir", rel),
		zap.Int("entries", len(entries)))
	return entries, nil
}

// Close stops the watcher
func (c *LocalCatalog) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.quit)
		err = c.watcher.Close()
		<-c.done
	})
	return err
}

// mimeFor maps an extension to a media type, falling back to content
// sniffing for extensionless files.
func (c *LocalCatalog) mimeFor(fullPath string) string {
	if mime, ok := mimeByExtension[strings.ToLower(filepath.Ext(fullPath))]; ok {
		return mime
	}

	f, err := os.Open(fullPath)
	if err != nil {
		return ""
	}
	defer f.Close()

	_, fileType, err := tag.Identify(f)
	if err != nil {
		return ""
	}
	return mimeByFileType[fileType]
}

// watch drops the listing cache after filesystem changes settle. The
// debounce timer absorbs bursts from bulk copies into the library.
func (c *LocalCatalog) watch() {
	defer close(c.done)

	timer := time.NewTimer(_rescanDebounce)
	timer.Stop() // Start with stopped timer

	for {
		select {
		case <-c.quit:
			return

		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(_rescanDebounce)

		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("Watcher error", zap.Error(err))

		case <-timer.C:
			// Changes settled: forget everything, the next List rescans
			c.mu.Lock()
			c.cache = make(map[string][]domain.CatalogEntry)
			c.mu.Unlock()
			c.logger.Debug("Library changed, listing cache dropped")
		}
	}
}
