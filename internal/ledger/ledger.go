package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"erpfetch/internal/fileutil"
)

// Header is the fixed column layout of the ledger file.
var Header = []string{"order_id", "doc_type", "downloaded", "upload"}

// ErrLocked is returned by Open when another process holds the writer lock.
var ErrLocked = errors.New("ledger is locked by another process")

// ErrReadOnly is returned by mutating calls on a ledger opened with OpenReadOnly.
var ErrReadOnly = errors.New("ledger opened read-only")

// Entry is one ledger row.
type Entry struct {
	OrderID    string `json:"order_id"`
	DocType    string `json:"doc_type"`
	Downloaded bool   `json:"downloaded"`
	Uploaded   bool   `json:"uploaded"`
}

// Ledger is a CSV-backed progress store. Methods are safe for concurrent use
// within one process.
type Ledger struct {
	path     string
	lock     *flock.Flock
	readOnly bool
	mu       sync.Mutex
}

// Open opens the ledger at path for writing, creating its directory and taking
// the writer lock. The file itself is created lazily on the first Upsert.
func Open(path string) (*Ledger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ledger path is required")
	}
	if err := fileutil.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("ledger directory: %w", err)
	}
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire ledger lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return &Ledger{path: path, lock: lock}, nil
}

// OpenReadOnly opens the ledger for inspection without taking the writer lock.
func OpenReadOnly(path string) *Ledger {
	return &Ledger{path: path, readOnly: true}
}

// Close releases the writer lock.
func (l *Ledger) Close() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}

// Path returns the backing file path.
func (l *Ledger) Path() string {
	return l.path
}

// Upsert records the flags for (orderID, docType), overwriting an existing row
// in place or appending a new one, then rewrites the entire file.
func (l *Ledger) Upsert(orderID, docType string, downloaded, uploaded bool) error {
	orderID, docType = NormalizeKey(orderID), NormalizeKey(docType)
	if orderID == "" || docType == "" {
		return errors.New("ledger upsert: order_id and doc_type are required")
	}
	if l.readOnly {
		return ErrReadOnly
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		return err
	}
	updated := false
	for i := range entries {
		if entries[i].OrderID == orderID && entries[i].DocType == docType {
			entries[i].Downloaded = downloaded
			entries[i].Uploaded = uploaded
			updated = true
			break
		}
	}
	if !updated {
		entries = append(entries, Entry{OrderID: orderID, DocType: docType, Downloaded: downloaded, Uploaded: uploaded})
	}
	return l.write(entries)
}

// SetDownloaded updates the downloaded flag and keeps any recorded uploaded flag.
func (l *Ledger) SetDownloaded(orderID, docType string, downloaded bool) error {
	entry, ok, err := l.Get(orderID, docType)
	if err != nil {
		return err
	}
	uploaded := ok && entry.Uploaded
	return l.Upsert(orderID, docType, downloaded, uploaded)
}

// Load returns all entries in file order. A missing file yields no entries.
func (l *Ledger) Load() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

// Exists reports whether a row exists for the key.
func (l *Ledger) Exists(orderID, docType string) (bool, error) {
	_, ok, err := l.Get(orderID, docType)
	return ok, err
}

// Get returns the row for the key, if present.
func (l *Ledger) Get(orderID, docType string) (Entry, bool, error) {
	orderID, docType = NormalizeKey(orderID), NormalizeKey(docType)
	entries, err := l.Load()
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range entries {
		if e.OrderID == orderID && e.DocType == docType {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// Last returns the final row of the file, if any.
func (l *Ledger) Last() (Entry, bool, error) {
	entries, err := l.Load()
	if err != nil {
		return Entry{}, false, err
	}
	if len(entries) == 0 {
		return Entry{}, false, nil
	}
	return entries[len(entries)-1], true, nil
}

// Clear removes the ledger file. Clearing an absent ledger is not an error.
func (l *Ledger) Clear() error {
	if l.readOnly {
		return ErrReadOnly
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear ledger: %w", err)
	}
	return nil
}

// NormalizeKey trims the value and collapses interior whitespace runs to one
// space. Case is preserved.
func NormalizeKey(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func (l *Ledger) read() ([]Entry, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

func (l *Ledger) write(entries []Entry) error {
	data, err := Encode(entries)
	if err != nil {
		return err
	}
	if err := fileutil.WriteAtomic(l.path, data, 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

// Parse decodes ledger CSV. Columns are located by header name; the legacy
// "download" column name is accepted for "downloaded".
func Parse(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse ledger header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	if _, ok := index["downloaded"]; !ok {
		if i, legacy := index["download"]; legacy {
			index["downloaded"] = i
		}
	}
	for _, required := range []string{"order_id", "doc_type"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("parse ledger: header missing %q column", required)
		}
	}

	var entries []Entry
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse ledger: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if len(record) < len(header) {
			return nil, fmt.Errorf("parse ledger: line %d has %d fields, want %d", line, len(record), len(header))
		}
		entries = append(entries, Entry{
			OrderID:    NormalizeKey(field(record, index, "order_id")),
			DocType:    NormalizeKey(field(record, index, "doc_type")),
			Downloaded: parseBool(field(record, index, "downloaded")),
			Uploaded:   parseBool(field(record, index, "upload")),
		})
	}
	return entries, nil
}

// Encode renders entries with the fixed header and lowercase boolean literals.
func Encode(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	for _, e := range entries {
		row := []string{e.OrderID, e.DocType, strconv.FormatBool(e.Downloaded), strconv.FormatBool(e.Uploaded)}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("encode ledger: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	return buf.Bytes(), nil
}

func field(record []string, index map[string]int, name string) string {
	i, ok := index[name]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

func parseBool(value string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && v
}
