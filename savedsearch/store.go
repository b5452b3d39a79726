// Package savedsearch persists named, canonicalized queries in an embedded
// badger database and announces every change on the event bus.
package savedsearch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"telemetry_search/config"
	"telemetry_search/events"
	"telemetry_search/query"
)

// MaxNameLength is the longest accepted saved search name, in bytes.
const MaxNameLength = 200

var (
	// ErrNotFound is returned when no saved search has the requested ID.
	ErrNotFound = errors.New("saved search not found")
	// ErrInvalidName is returned for empty or overlong names.
	ErrInvalidName = errors.New("invalid saved search name")
	// ErrInvalidDocument is returned by Import for input that is not an export document.
	ErrInvalidDocument = errors.New("invalid saved search document")
)

const keyPrefix = "search/"

// Search is a named query. Query always holds canonical text.
type Search struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Query     string    `json:"query" yaml:"query"`
	Owner     string    `json:"owner,omitempty" yaml:"owner,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// exportDocument is the YAML layout used by Export and Import.
type exportDocument struct {
	Searches []Search `yaml:"searches"`
}

// Store is a badger-backed saved search repository. It is safe for concurrent use.
type Store struct {
	db  *badger.DB
	bus *events.Bus
}

// stdLogger routes badger's warnings and errors to the standard logger.
type stdLogger struct{}

func (stdLogger) Errorf(format string, args ...interface{}) {
	log.Printf("SavedSearch: badger error: "+strings.TrimSuffix(format, "\n"), args...)
}

func (stdLogger) Warningf(format string, args ...interface{}) {
	log.Printf("SavedSearch: badger warning: "+strings.TrimSuffix(format, "\n"), args...)
}

func (stdLogger) Infof(string, ...interface{})  {}
func (stdLogger) Debugf(string, ...interface{}) {}

// Open opens the store described by cfg. bus may be nil.
func Open(cfg config.StoreConfig, bus *events.Bus) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		path := cfg.GetPath()
		if err := os.MkdirAll(path, 0750); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(stdLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open saved search store: %w", err)
	}

	return &Store{db: db, bus: bus}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create stores a new saved search and returns it.
func (s *Store) Create(name, raw, owner string) (*Search, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	search := &Search{
		ID:        uuid.NewString(),
		Name:      name,
		Query:     query.Parse(raw).String(),
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return put(txn, search)
	}); err != nil {
		return nil, fmt.Errorf("failed to create saved search: %w", err)
	}

	s.bus.Publish(events.NewSavedSearchCreatedEvent(search.ID, search.Name, search.Query, search.Owner, owner))
	return search, nil
}

// Get returns the saved search with the given ID.
func (s *Store) Get(id string) (*Search, error) {
	var search *Search
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		search, err = get(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return search, nil
}

// List returns every saved search ordered by name, then creation time.
func (s *Store) List() ([]*Search, error) {
	searches := []*Search{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var search Search
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &search)
			}); err != nil {
				return fmt.Errorf("failed to decode %s: %w", it.Item().Key(), err)
			}
			searches = append(searches, &search)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list saved searches: %w", err)
	}

	sort.SliceStable(searches, func(i, j int) bool {
		if searches[i].Name != searches[j].Name {
			return searches[i].Name < searches[j].Name
		}
		return searches[i].CreatedAt.Before(searches[j].CreatedAt)
	})
	return searches, nil
}

// Update renames a saved search and replaces its query. An empty name keeps
// the current one. actor is the user making the change.
func (s *Store) Update(id, name, raw, actor string) (*Search, error) {
	if name != "" {
		var err error
		if name, err = validateName(name); err != nil {
			return nil, err
		}
	}

	var search *Search
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		search, err = get(txn, id)
		if err != nil {
			return err
		}
		if name != "" {
			search.Name = name
		}
		search.Query = query.Parse(raw).String()
		search.UpdatedAt = time.Now().UTC()
		return put(txn, search)
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(events.NewSavedSearchUpdatedEvent(search.ID, search.Name, search.Query, search.Owner, actor))
	return search, nil
}

// Delete removes a saved search.
func (s *Store) Delete(id, actor string) error {
	var search *Search
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		search, err = get(txn, id)
		if err != nil {
			return err
		}
		return txn.Delete(key(id))
	})
	if err != nil {
		return err
	}

	s.bus.Publish(events.NewSavedSearchDeletedEvent(search.ID, search.Name, search.Query, search.Owner, actor))
	return nil
}

// Export writes every saved search to w as a YAML document.
func (s *Store) Export(w io.Writer) error {
	searches, err := s.List()
	if err != nil {
		return err
	}

	doc := exportDocument{Searches: make([]Search, len(searches))}
	for i, search := range searches {
		doc.Searches[i] = *search
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode saved searches: %w", err)
	}
	return enc.Close()
}

// Import reads a document written by Export and upserts each search by ID.
// Queries are canonicalized; entries without an ID get a new one. It returns
// the number of searches written. Nothing is written if any entry is invalid.
func (s *Store) Import(r io.Reader, actor string) (int, error) {
	var doc exportDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	now := time.Now().UTC()
	imported := make([]*Search, 0, len(doc.Searches))
	for i := range doc.Searches {
		search := doc.Searches[i]
		name, err := validateName(search.Name)
		if err != nil {
			return 0, fmt.Errorf("entry %d: %w", i, err)
		}
		search.Name = name
		search.Query = query.Parse(search.Query).String()
		if search.ID == "" {
			search.ID = uuid.NewString()
		}
		if search.CreatedAt.IsZero() {
			search.CreatedAt = now
		}
		if search.UpdatedAt.IsZero() {
			search.UpdatedAt = now
		}
		imported = append(imported, &search)
	}

	existed := make(map[string]bool, len(imported))
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, search := range imported {
			if _, err := txn.Get(key(search.ID)); err == nil {
				existed[search.ID] = true
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := put(txn, search); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to import saved searches: %w", err)
	}

	for _, search := range imported {
		if existed[search.ID] {
			s.bus.Publish(events.NewSavedSearchUpdatedEvent(search.ID, search.Name, search.Query, search.Owner, actor))
		} else {
			s.bus.Publish(events.NewSavedSearchCreatedEvent(search.ID, search.Name, search.Query, search.Owner, actor))
		}
	}

	log.Printf("SavedSearch: imported %d searches", len(imported))
	return len(imported), nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if len(name) > MaxNameLength {
		return "", fmt.Errorf("%w: name exceeds %d bytes", ErrInvalidName, MaxNameLength)
	}
	return name, nil
}

func key(id string) []byte {
	return []byte(keyPrefix + id)
}

func get(txn *badger.Txn, id string) (*Search, error) {
	item, err := txn.Get(key(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read saved search %s: %w", id, err)
	}

	var search Search
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &search)
	}); err != nil {
		return nil, fmt.Errorf("failed to decode saved search %s: %w", id, err)
	}
	return &search, nil
}

func put(txn *badger.Txn, search *Search) error {
	data, err := json.Marshal(search)
	if err != nil {
		return err
	}
	return txn.Set(key(search.ID), data)
}
