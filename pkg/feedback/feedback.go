// Package feedback persists user reactions to suggested links.
//
// Every time a user accepts, rejects or ignores a suggestion, the hosting
// UI records a FeedbackRecord here. The store is append-only: records are
// never mutated or deleted, which keeps the training data for the quality
// predictor honest and makes concurrent reads trivially safe.
//
// Storage is a BadgerDB keyspace with time-ordered keys:
//
//	fb:<unix-nanos>:<uuid> -> JSON(Record)
//
// Appends are serialized through Badger's transaction machinery; reads for
// training take a snapshot copy first, so training never blocks new
// feedback from arriving.
//
// Example:
//
//	store, err := feedback.Open(feedback.Options{Dir: "./data/feedback"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	store.Append(feedback.Record{
//		FromID: "A1", ToID: "P1",
//		Similarity: 0.62, Confidence: 0.71,
//		Method: "jaccard", Action: feedback.Accepted,
//	})
//
//	stats, _ := store.Stats()
//	fmt.Printf("acceptance rate: %.1f%%\n", stats.AcceptanceRate*100)
package feedback

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/orneryd/bowline/pkg/vocab"
)

// Action is the user's reaction to a suggested link.
type Action string

const (
	Accepted Action = "accepted"
	Rejected Action = "rejected"
	Ignored  Action = "ignored"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case Accepted, Rejected, Ignored:
		return true
	}
	return false
}

// Record is one user reaction to one suggested link.
type Record struct {
	Timestamp  time.Time      `json:"timestamp"`
	FromID     string         `json:"from_id"`
	ToID       string         `json:"to_id"`
	FromType   vocab.ItemType `json:"from_type"`
	ToType     vocab.ItemType `json:"to_type"`
	Similarity float64        `json:"similarity"`
	Confidence float64        `json:"confidence"`
	Method     string         `json:"method"`
	Action     Action         `json:"action"`
}

// Options configures the store.
type Options struct {
	// Dir is the BadgerDB directory. Empty means in-memory (tests,
	// ephemeral sessions).
	Dir string
}

// Store is the append-only feedback log.
type Store struct {
	db *badger.DB
}

const keyPrefix = "fb:"

// Open opens (or creates) a feedback store.
func Open(opts Options) (*Store, error) {
	var badgerOpts badger.Options
	if opts.Dir == "" {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		badgerOpts = badger.DefaultOptions(opts.Dir)
	}
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open feedback store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append adds one record to the log.
//
// A zero timestamp is stamped with the current time. The record key embeds
// the timestamp, so iteration order is chronological.
func (s *Store) Append(rec Record) error {
	if !rec.Action.Valid() {
		return fmt.Errorf("feedback: invalid action %q", rec.Action)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("feedback: encode record: %w", err)
	}

	key := fmt.Sprintf("%s%020d:%s", keyPrefix, rec.Timestamp.UnixNano(), uuid.NewString())
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("feedback: append: %w", err)
	}
	return nil
}

// All returns a snapshot copy of every record in chronological order.
//
// The copy is taken inside one read transaction, so callers (the quality
// predictor's trainer, stats panels) see a consistent view while appends
// continue concurrently.
func (s *Store) All() ([]Record, error) {
	var records []Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec Record
				if err := json.Unmarshal(val, &rec); err != nil {
					// A single corrupt record is skipped, not fatal;
					// the log keeps its remaining value.
					return nil
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("feedback: read log: %w", err)
	}
	return records, nil
}

// Len returns the number of stored records.
func (s *Store) Len() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("feedback: count: %w", err)
	}
	return n, nil
}

// MethodStats aggregates reactions per deriving method.
type MethodStats struct {
	Total          int     `json:"total"`
	Accepted       int     `json:"accepted"`
	Rejected       int     `json:"rejected"`
	Ignored        int     `json:"ignored"`
	AcceptanceRate float64 `json:"acceptance_rate"` // accepted / (accepted + rejected)
}

// Stats summarizes the whole log for diagnostics and for the confidence
// scorer's method-reliability factor.
type Stats struct {
	Total          int                    `json:"total"`
	Accepted       int                    `json:"accepted"`
	Rejected       int                    `json:"rejected"`
	Ignored        int                    `json:"ignored"`
	AcceptanceRate float64                `json:"acceptance_rate"`
	PerMethod      map[string]MethodStats `json:"per_method"`
}

// Stats computes aggregate statistics over a snapshot of the log.
//
// Acceptance rates divide accepted by accepted+rejected; ignored records
// count toward totals but express no preference either way.
func (s *Store) Stats() (Stats, error) {
	records, err := s.All()
	if err != nil {
		return Stats{}, err
	}
	return Summarize(records), nil
}

// Summarize aggregates statistics over an in-memory record slice.
func Summarize(records []Record) Stats {
	stats := Stats{PerMethod: make(map[string]MethodStats)}
	for _, rec := range records {
		stats.Total++
		ms := stats.PerMethod[rec.Method]
		ms.Total++
		switch rec.Action {
		case Accepted:
			stats.Accepted++
			ms.Accepted++
		case Rejected:
			stats.Rejected++
			ms.Rejected++
		case Ignored:
			stats.Ignored++
			ms.Ignored++
		}
		stats.PerMethod[rec.Method] = ms
	}

	stats.AcceptanceRate = rate(stats.Accepted, stats.Rejected)
	for method, ms := range stats.PerMethod {
		ms.AcceptanceRate = rate(ms.Accepted, ms.Rejected)
		stats.PerMethod[method] = ms
	}
	return stats
}

func rate(accepted, rejected int) float64 {
	decided := accepted + rejected
	if decided == 0 {
		return 0
	}
	return float64(accepted) / float64(decided)
}
