package archive

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/hearthside/relay/pkg/types"
)

var (
	// Bucket names
	bucketEvents   = []byte("events")
	bucketMessages = []byte("messages")
	bucketWebhooks = []byte("webhooks")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "relay.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketEvents,
			bucketMessages,
			bucketWebhooks,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Event operations
func (s *BoltStore) WriteEvent(ev *types.Event) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		return b.Put([]byte(ev.ID), data)
	})
}

func (s *BoltStore) GetEvent(id string) (*types.Event, error) {
	var ev types.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("event not found: %s", id)
		}
		return json.Unmarshal(data, &ev)
	})
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *BoltStore) ListEvents() ([]*types.Event, error) {
	var events []*types.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		return b.ForEach(func(k, v []byte) error {
			var ev types.Event
			if err := json.Unmarshal(v, &ev); err != nil {
				return err
			}
			events = append(events, &ev)
			return nil
		})
	})
	return events, err
}

func (s *BoltStore) ListEventsByCategory(category types.Category) ([]*types.Event, error) {
	events, err := s.ListEvents()
	if err != nil {
		return nil, err
	}

	var filtered []*types.Event
	for _, ev := range events {
		if ev.Category == category {
			filtered = append(filtered, ev)
		}
	}
	return filtered, nil
}

// Message operations
func (s *BoltStore) WriteMessage(msg *types.Message) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		return b.Put([]byte(msg.ID), data)
	})
}

func (s *BoltStore) GetMessage(id string) (*types.Message, error) {
	var msg types.Message
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("message not found: %s", id)
		}
		return json.Unmarshal(data, &msg)
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *BoltStore) ListMessages() ([]*types.Message, error) {
	var messages []*types.Message
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		return b.ForEach(func(k, v []byte) error {
			var msg types.Message
			if err := json.Unmarshal(v, &msg); err != nil {
				return err
			}
			messages = append(messages, &msg)
			return nil
		})
	})
	return messages, err
}

// Webhook registration operations
func (s *BoltStore) SaveWebhook(reg *types.WebhookRegistration) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWebhooks)
		data, err := json.Marshal(reg)
		if err != nil {
			return err
		}
		return b.Put([]byte(reg.ID), data)
	})
}

func (s *BoltStore) ListWebhooks() ([]*types.WebhookRegistration, error) {
	var regs []*types.WebhookRegistration
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWebhooks)
		return b.ForEach(func(k, v []byte) error {
			var reg types.WebhookRegistration
			if err := json.Unmarshal(v, &reg); err != nil {
				return err
			}
			regs = append(regs, &reg)
			return nil
		})
	})
	return regs, err
}

func (s *BoltStore) DeleteWebhook(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWebhooks)
		return b.Delete([]byte(id))
	})
}
