package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const journalFileName = "journal.ndjson"

// FileJournal appends entries as newline-delimited JSON, rotating the file
// once it grows past MaxSize
type FileJournal struct {
	basePath string
	file     *os.File
	mu       sync.Mutex
	encoder  *json.Encoder
	nextID   int64
	maxSize  int64
	maxFiles int
}

// FileJournalConfig configures the file journal
type FileJournalConfig struct {
	BasePath string // Directory holding the journal files
	MaxSize  int64  // Max file size in bytes (default: 100MB)
	MaxFiles int    // Max number of rotated files to keep (default: 10)
}

// NewFileJournal opens the journal file under config.BasePath
func NewFileJournal(config FileJournalConfig) (*FileJournal, error) {
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	j := &FileJournal{
		basePath: config.BasePath,
		maxSize:  config.MaxSize,
		maxFiles: config.MaxFiles,
		nextID:   time.Now().UnixNano(),
	}
	if j.maxSize == 0 {
		j.maxSize = 100 * 1024 * 1024
	}
	if j.maxFiles == 0 {
		j.maxFiles = 10
	}

	if err := j.openFile(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *FileJournal) path() string {
	return filepath.Join(j.basePath, journalFileName)
}

func (j *FileJournal) openFile() error {
	if info, err := os.Stat(j.path()); err == nil && info.Size() >= j.maxSize {
		if err := j.rotateFile(); err != nil {
			return fmt.Errorf("failed to rotate journal file: %w", err)
		}
	}

	file, err := os.OpenFile(j.path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open journal file: %w", err)
	}
	j.file = file
	j.encoder = json.NewEncoder(file)
	return nil
}

func (j *FileJournal) rotateFile() error {
	if j.file != nil {
		j.file.Close()
		j.file = nil
	}

	rotated := filepath.Join(j.basePath, fmt.Sprintf("journal-%s.ndjson", time.Now().UTC().Format("2006-01-02-15-04-05.000000000")))
	if err := os.Rename(j.path(), rotated); err != nil {
		return fmt.Errorf("failed to rename journal file: %w", err)
	}
	return j.cleanupOldFiles()
}

func (j *FileJournal) cleanupOldFiles() error {
	files, err := filepath.Glob(filepath.Join(j.basePath, "journal-*.ndjson"))
	if err != nil {
		return err
	}
	if len(files) <= j.maxFiles {
		return nil
	}
	// names embed the rotation time, so lexical order is age order
	sort.Strings(files)
	for _, f := range files[:len(files)-j.maxFiles] {
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("failed to remove %s: %w", f, err)
		}
	}
	return nil
}

// Record appends e to the journal file
func (j *FileJournal) Record(ctx context.Context, e *Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return fmt.Errorf("journal file is closed")
	}
	if info, err := j.file.Stat(); err == nil && info.Size() >= j.maxSize {
		if err := j.openFile(); err != nil {
			return err
		}
	}

	if e.ID == 0 {
		j.nextID++
		e.ID = j.nextID
	}
	if err := j.encoder.Encode(e); err != nil {
		return fmt.Errorf("failed to write journal entry: %w", err)
	}
	return nil
}

// ReadEntries reads up to count entries from the current file, oldest
// first. A count of zero reads everything.
func (j *FileJournal) ReadEntries(count int) ([]*Entry, error) {
	file, err := os.Open(j.path())
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer file.Close()

	var entries []*Entry
	decoder := json.NewDecoder(file)
	for {
		var e Entry
		if err := decoder.Decode(&e); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to decode journal entry: %w", err)
		}
		entries = append(entries, &e)
		if count > 0 && len(entries) >= count {
			break
		}
	}
	return entries, nil
}

// Close closes the journal file
func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file != nil {
		err := j.file.Close()
		j.file = nil
		return err
	}
	return nil
}
