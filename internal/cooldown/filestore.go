package cooldown

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// FileConfig holds options for a FileStore.
type FileConfig struct {
	Path             string
	AutoSaveInterval time.Duration
	// Retention drops records older than this on save. Zero keeps everything.
	Retention time.Duration
	// BackupCount is how many copies of the file found at startup are kept
	// as <path>.backup.<timestamp>. Zero disables backups.
	BackupCount int
}

// DefaultFileConfig returns the defaults used by the bot.
func DefaultFileConfig(path string) FileConfig {
	return FileConfig{
		Path:             path,
		AutoSaveInterval: 10 * time.Second,
		Retention:        24 * time.Hour,
		BackupCount:      3,
	}
}

// FileStore keeps cooldown records in a JSON file of key to unix
// milliseconds, rewritten atomically whenever the content changes.
type FileStore struct {
	cfg FileConfig

	mu           sync.Mutex
	records      map[string]int64
	lastChecksum string
	backedUp     bool
	closed       bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewFileStore opens or creates the file at cfg.Path and starts autosaving.
func NewFileStore(cfg FileConfig) (*FileStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("cooldown file path cannot be empty")
	}
	if cfg.AutoSaveInterval <= 0 {
		cfg.AutoSaveInterval = 10 * time.Second
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create cooldown directory: %w", err)
	}

	fs := &FileStore{
		cfg:     cfg,
		records: make(map[string]int64),
		done:    make(chan struct{}),
	}

	data, err := os.ReadFile(cfg.Path)
	switch {
	case os.IsNotExist(err):
		if err := fs.writeFileAtomic([]byte("{}")); err != nil {
			return nil, err
		}
		fs.backedUp = true
	case err != nil:
		return nil, fmt.Errorf("read cooldown file: %w", err)
	default:
		if err := json.Unmarshal(data, &fs.records); err != nil {
			return nil, fmt.Errorf("invalid cooldown file %s: %w", cfg.Path, err)
		}
		fs.lastChecksum = checksum(data)
	}

	fs.wg.Add(1)
	go fs.autoSave()
	return fs, nil
}

// Load returns every record in the file.
func (fs *FileStore) Load(context.Context) (map[Key]time.Time, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	out := make(map[Key]time.Time, len(fs.records))
	for raw, ms := range fs.records {
		k, ok := ParseKey(raw)
		if !ok {
			log.Warn().Str("component", "cooldown").Str("key", raw).Msg("skipping malformed cooldown key")
			continue
		}
		out[k] = time.UnixMilli(ms)
	}
	return out, nil
}

// Put records k in memory; it reaches disk on the next save.
func (fs *FileStore) Put(k Key, at time.Time) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return
	}
	fs.records[k.String()] = at.UnixMilli()
}

// Save writes the records to disk now.
func (fs *FileStore) Save() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.save()
}

// Close stops autosaving and performs a final save.
func (fs *FileStore) Close() error {
	fs.mu.Lock()
	if fs.closed {
		fs.mu.Unlock()
		return nil
	}
	fs.closed = true
	fs.mu.Unlock()

	close(fs.done)
	fs.wg.Wait()

	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.save()
}

func (fs *FileStore) save() error {
	if fs.cfg.Retention > 0 {
		cutoff := time.Now().Add(-fs.cfg.Retention).UnixMilli()
		for k, ms := range fs.records {
			if ms < cutoff {
				delete(fs.records, k)
			}
		}
	}

	data, err := json.MarshalIndent(fs.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cooldowns: %w", err)
	}
	sum := checksum(data)
	if sum == fs.lastChecksum {
		return nil
	}
	if !fs.backedUp && fs.cfg.BackupCount > 0 {
		if err := fs.createBackup(); err != nil {
			log.Warn().Err(err).Str("component", "cooldown").Msg("backup failed")
		}
		fs.backedUp = true
	}
	if err := fs.writeFileAtomic(data); err != nil {
		return err
	}
	fs.lastChecksum = sum
	return nil
}

// writeFileAtomic writes to a temporary file, syncs it and renames it over
// the target.
func (fs *FileStore) writeFileAtomic(data []byte) error {
	tmp := fs.cfg.Path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp file: %w", err)
	}
	f.Close()

	if err := os.Rename(tmp, fs.cfg.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// createBackup copies the current file before it is first overwritten and
// prunes old copies.
func (fs *FileStore) createBackup() error {
	data, err := os.ReadFile(fs.cfg.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%s.backup.%s", fs.cfg.Path, time.Now().Format("20060102_150405"))
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return err
	}

	backups, err := filepath.Glob(fs.cfg.Path + ".backup.*")
	if err != nil {
		return err
	}
	// Timestamps sort chronologically.
	slices.Sort(backups)
	for len(backups) > fs.cfg.BackupCount {
		if err := os.Remove(backups[0]); err != nil {
			return err
		}
		backups = backups[1:]
	}
	return nil
}

func (fs *FileStore) autoSave() {
	defer fs.wg.Done()

	ticker := time.NewTicker(fs.cfg.AutoSaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-fs.done:
			return
		case <-ticker.C:
			if err := fs.Save(); err != nil {
				log.Error().Err(err).Str("component", "cooldown").Msg("auto-save failed")
			}
		}
	}
}

func checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
