package backup

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"reelvault/services/collections"
)

// Manifest describes the contents of a backup archive.
type Manifest struct {
	Version     string            `json:"version"`
	CreatedAt   time.Time         `json:"createdAt"`
	Files       map[string]string `json:"files"` // filename -> sha256 checksum
	Collections int               `json:"collections"`
}

// BackupInfo contains metadata about a backup file.
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
	Version   string    `json:"version,omitempty"`
}

const backupPrefix = "reelvault_backup_"

// Service creates and lists backup archives. A backup holds the raw SQLite
// database plus a portable JSON export of every collection, so lists survive
// even if the database format moves on.
type Service struct {
	mu          sync.Mutex
	backupDir   string
	dbPath      string
	dataDir     string
	collections *collections.Service
}

// NewService creates a backup service writing archives under dataDir/backups.
func NewService(dataDir, dbPath string, collectionsSvc *collections.Service) (*Service, error) {
	backupDir := filepath.Join(dataDir, "backups")
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	return &Service{
		backupDir:   backupDir,
		dbPath:      dbPath,
		dataDir:     dataDir,
		collections: collectionsSvc,
	}, nil
}

// exportFile is one prepared archive entry.
type exportFile struct {
	name     string
	data     []byte
	checksum string
}

// Create builds a new backup archive and returns its metadata.
func (s *Service) Create() (*BackupInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timestamp := time.Now().UTC().Format("20060102-150405")
	filename := backupPrefix + timestamp + ".zip"
	backupPath := filepath.Join(s.backupDir, filename)

	exports, count, err := s.exportCollections()
	if err != nil {
		return nil, err
	}

	tmpPath := backupPath + ".tmp"
	zipFile, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("create backup file: %w", err)
	}
	zipWriter := zip.NewWriter(zipFile)

	cleanup := func() {
		zipWriter.Close()
		zipFile.Close()
		os.Remove(tmpPath)
	}

	manifest := Manifest{
		Version:     "1.0",
		CreatedAt:   time.Now().UTC(),
		Files:       make(map[string]string),
		Collections: count,
	}

	// Raw database file. SQLite tolerates concurrent readers of the main
	// db file in WAL mode.
	if checksum, err := addFileToZip(zipWriter, s.dbPath, "collections.db"); err != nil {
		log.Printf("[backup] skipping database: %v", err)
	} else {
		manifest.Files["collections.db"] = checksum
	}

	// JSON sidecars next to the database.
	for _, name := range []string{"accounts.json", "sessions.json"} {
		srcPath := filepath.Join(s.dataDir, name)
		if _, err := os.Stat(srcPath); os.IsNotExist(err) {
			continue
		}
		checksum, err := addFileToZip(zipWriter, srcPath, name)
		if err != nil {
			log.Printf("[backup] skipping %s: %v", name, err)
			continue
		}
		manifest.Files[name] = checksum
	}

	// Zip writing is serial; the exports were prepared concurrently.
	for _, export := range exports {
		w, err := zipWriter.Create(export.name)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("create %s in zip: %w", export.name, err)
		}
		if _, err := w.Write(export.data); err != nil {
			cleanup()
			return nil, fmt.Errorf("write %s: %w", export.name, err)
		}
		manifest.Files[export.name] = export.checksum
	}

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	manifestWriter, err := zipWriter.Create("manifest.json")
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("create manifest in zip: %w", err)
	}
	if _, err := manifestWriter.Write(manifestJSON); err != nil {
		cleanup()
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	if err := zipWriter.Close(); err != nil {
		zipFile.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("close zip writer: %w", err)
	}
	if err := zipFile.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("close zip file: %w", err)
	}
	if err := os.Rename(tmpPath, backupPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("finalize backup: %w", err)
	}

	stat, err := os.Stat(backupPath)
	if err != nil {
		return nil, fmt.Errorf("stat backup: %w", err)
	}

	info := &BackupInfo{
		Filename:  filename,
		Size:      stat.Size(),
		CreatedAt: manifest.CreatedAt,
		Version:   manifest.Version,
	}

	log.Printf("[backup] created %s (%d bytes, %d collections)", filename, info.Size, count)
	return info, nil
}

// exportCollections marshals every collection (with items) to JSON,
// fanning the per-collection work out over a bounded pool.
func (s *Service) exportCollections() ([]exportFile, int, error) {
	all, err := s.collections.ListCollections("")
	if err != nil {
		return nil, 0, fmt.Errorf("list collections: %w", err)
	}

	p := pool.NewWithResults[*exportFile]().WithMaxGoroutines(4).WithErrors()
	for _, c := range all {
		p.Go(func() (*exportFile, error) {
			full, err := s.collections.GetCollection(c.ID)
			if err != nil {
				return nil, fmt.Errorf("load collection %s: %w", c.ID, err)
			}
			if full == nil {
				return nil, nil // deleted between list and load
			}

			data, err := json.MarshalIndent(full, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("marshal collection %s: %w", c.ID, err)
			}

			sum := sha256.Sum256(data)
			return &exportFile{
				name:     "collections/" + c.ID + ".json",
				data:     data,
				checksum: hex.EncodeToString(sum[:]),
			}, nil
		})
	}

	results, err := p.Wait()
	if err != nil {
		return nil, 0, err
	}

	exports := make([]exportFile, 0, len(results))
	for _, r := range results {
		if r != nil {
			exports = append(exports, *r)
		}
	}
	sort.Slice(exports, func(i, j int) bool { return exports[i].name < exports[j].name })

	return exports, len(exports), nil
}

// List returns available backups sorted by creation time, newest first.
func (s *Service) List() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []BackupInfo{}, nil
		}
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, ".zip") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Filename:  name,
			Size:      info.Size(),
			CreatedAt: info.ModTime().UTC(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})

	return backups, nil
}

// Prune deletes the oldest backups beyond keep and returns how many went.
func (s *Service) Prune(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	backups, err := s.List()
	if err != nil {
		return 0, err
	}
	if len(backups) <= keep {
		return 0, nil
	}

	removed := 0
	for _, b := range backups[keep:] {
		if err := os.Remove(filepath.Join(s.backupDir, b.Filename)); err != nil {
			log.Printf("[backup] failed to prune %s: %v", b.Filename, err)
			continue
		}
		removed++
	}
	return removed, nil
}

// RunScheduled creates a backup every interval and prunes beyond keep,
// until the context is cancelled. Intended to run in its own goroutine.
func (s *Service) RunScheduled(ctx context.Context, interval time.Duration, keep int) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[backup] scheduled backups every %s, keeping %d", interval, keep)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Create(); err != nil {
				log.Printf("[backup] scheduled backup failed: %v", err)
				continue
			}
			if removed, err := s.Prune(keep); err != nil {
				log.Printf("[backup] prune failed: %v", err)
			} else if removed > 0 {
				log.Printf("[backup] pruned %d old backups", removed)
			}
		}
	}
}

// addFileToZip streams a file into the archive and returns its checksum.
func addFileToZip(zipWriter *zip.Writer, srcPath, destName string) (string, error) {
	file, err := os.Open(srcPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	teeReader := io.TeeReader(file, hasher)

	writer, err := zipWriter.Create(destName)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(writer, teeReader); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
