package escrow

import (
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/talkincode/supplychain/internal/domain"
	"go.etcd.io/bbolt"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var metaBucket = []byte("order_metadata")

// MetadataStore keeps the shelf placement of escrow orders until they are released
type MetadataStore interface {
	// Put records the placement of an order, replacing any previous entry
	Put(meta domain.OrderMeta) error

	// Get returns the placement of an order, or nil when there is none
	Get(orderID string) (*domain.OrderMeta, error)

	// Consume reads the entry of orderID, passes it to fn and deletes it, all in one
	// write transaction. An error from fn keeps the entry. found is false when no entry exists.
	Consume(orderID string, fn func(meta *domain.OrderMeta) error) (found bool, err error)

	// Delete removes an entry
	Delete(orderID string) error

	// List returns every entry, oldest first
	List() ([]domain.OrderMeta, error)

	// PurgeOlderThan removes entries created before t and returns how many were removed
	PurgeOlderThan(t time.Time) (int, error)

	Close() error
}

// BoltMetadataStore is a MetadataStore backed by a bbolt file
type BoltMetadataStore struct {
	db *bbolt.DB
}

var _ MetadataStore = (*BoltMetadataStore)(nil)

// OpenMetadataStore opens (or creates) the metadata file at path
func OpenMetadataStore(path string) (*BoltMetadataStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open metadata store %s", path)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create metadata bucket")
	}
	return &BoltMetadataStore{db: db}, nil
}

func (s *BoltMetadataStore) Put(meta domain.OrderMeta) error {
	if meta.OrderID == "" {
		return domain.NewValidationError("order_id", "is required")
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}
	value, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(metaBucket).Put([]byte(meta.OrderID), value)
	})
}

func (s *BoltMetadataStore) Get(orderID string) (*domain.OrderMeta, error) {
	var meta *domain.OrderMeta
	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(metaBucket).Get([]byte(orderID))
		if value == nil {
			return nil
		}
		meta = &domain.OrderMeta{}
		return json.Unmarshal(value, meta)
	})
	return meta, err
}

func (s *BoltMetadataStore) Consume(orderID string, fn func(meta *domain.OrderMeta) error) (bool, error) {
	found := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(metaBucket)
		value := b.Get([]byte(orderID))
		if value == nil {
			return nil
		}
		var meta domain.OrderMeta
		if err := json.Unmarshal(value, &meta); err != nil {
			return errors.Wrapf(err, "decode metadata of %s", orderID)
		}
		found = true
		if err := fn(&meta); err != nil {
			return err
		}
		return b.Delete([]byte(orderID))
	})
	return found, err
}

func (s *BoltMetadataStore) Delete(orderID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(metaBucket).Delete([]byte(orderID))
	})
}

func (s *BoltMetadataStore) List() ([]domain.OrderMeta, error) {
	var out []domain.OrderMeta
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(metaBucket).ForEach(func(_, value []byte) error {
			var meta domain.OrderMeta
			if err := json.Unmarshal(value, &meta); err != nil {
				return err
			}
			out = append(out, meta)
			return nil
		})
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (s *BoltMetadataStore) PurgeOlderThan(t time.Time) (int, error) {
	var removed int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(metaBucket)
		var stale [][]byte
		err := b.ForEach(func(key, value []byte) error {
			var meta domain.OrderMeta
			if err := json.Unmarshal(value, &meta); err != nil || meta.CreatedAt.Before(t) {
				stale = append(stale, append([]byte(nil), key...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, key := range stale {
			if err := b.Delete(key); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

func (s *BoltMetadataStore) Close() error {
	return s.db.Close()
}
