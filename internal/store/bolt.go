package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"lcn-go-panel/internal/lcn"
)

var (
	bucketDevices = []byte("devices")
	bucketSession = []byte("session")
	keySession    = []byte("state")
)

// BoltStore implements Store using BoltDB.
//
// Devices live in a nested bucket per host, keyed by address token.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens or creates a BoltDB database.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketDevices, bucketSession} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func hostBucket(tx *bolt.Tx, hostID string, create bool) (*bolt.Bucket, error) {
	root := tx.Bucket(bucketDevices)
	if root == nil {
		return nil, fmt.Errorf("bucket %q not found", bucketDevices)
	}
	if create {
		return root.CreateBucketIfNotExists([]byte(hostID))
	}
	return root.Bucket([]byte(hostID)), nil
}

func putDevice(b *bolt.Bucket, dev *lcn.Device) error {
	if !dev.Address.Valid() {
		return fmt.Errorf("device %s: invalid address", dev.Address)
	}
	data, err := json.Marshal(dev)
	if err != nil {
		return err
	}
	return b.Put([]byte(dev.Address.Token()), data)
}

func (s *BoltStore) SaveDevice(hostID string, dev *lcn.Device) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := hostBucket(tx, hostID, true)
		if err != nil {
			return err
		}
		return putDevice(b, dev)
	})
}

func (s *BoltStore) GetDevice(hostID string, addr lcn.Address) (*lcn.Device, error) {
	var dev lcn.Device
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := hostBucket(tx, hostID, false)
		if err != nil {
			return err
		}
		var data []byte
		if b != nil {
			data = b.Get([]byte(addr.Token()))
		}
		if data == nil {
			return fmt.Errorf("device %s on %s: %w", addr, hostID, ErrNotFound)
		}
		return json.Unmarshal(data, &dev)
	})
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

func (s *BoltStore) DeleteDevice(hostID string, addr lcn.Address) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := hostBucket(tx, hostID, false)
		if err != nil || b == nil {
			return err
		}
		return b.Delete([]byte(addr.Token()))
	})
}

// ListDevices returns the cached devices of a host ordered by token.
func (s *BoltStore) ListDevices(hostID string) ([]*lcn.Device, error) {
	var devices []*lcn.Device
	err := s.db.View(func(tx *bolt.Tx) error {
		b, err := hostBucket(tx, hostID, false)
		if err != nil || b == nil {
			return err // no bucket = no devices
		}
		devices = make([]*lcn.Device, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			var dev lcn.Device
			if err := json.Unmarshal(v, &dev); err != nil {
				return fmt.Errorf("device %s: %w", k, err)
			}
			devices = append(devices, &dev)
			return nil
		})
	})
	return devices, err
}

func (s *BoltStore) ReplaceDevices(hostID string, devices []lcn.Device) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketDevices)
		if root == nil {
			return fmt.Errorf("bucket %q not found", bucketDevices)
		}
		if root.Bucket([]byte(hostID)) != nil {
			if err := root.DeleteBucket([]byte(hostID)); err != nil {
				return err
			}
		}
		b, err := root.CreateBucket([]byte(hostID))
		if err != nil {
			return err
		}
		for i := range devices {
			if err := putDevice(b, &devices[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) SaveSession(sess *Session) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSession)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketSession)
		}
		data, err := json.Marshal(sess)
		if err != nil {
			return err
		}
		return b.Put(keySession, data)
	})
}

func (s *BoltStore) GetSession() (*Session, error) {
	var sess Session
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSession)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketSession)
		}
		data := b.Get(keySession)
		if data == nil {
			return fmt.Errorf("session: %w", ErrNotFound)
		}
		return json.Unmarshal(data, &sess)
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
