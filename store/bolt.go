package store

import (
	"encoding/json"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/nstehr/mudlark/mudlark-core/model"
)

var bucketVariables = []byte("variables")

// storedVariable is the on-disk record; the name is the key.
type storedVariable struct {
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// Bolt persists variables in a bbolt file and serves reads from an
// in-memory cache, writing through on every Set.
type Bolt struct {
	db    *bbolt.DB
	cache *Memory
}

// OpenBolt opens or creates the database at path and loads every variable.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketVariables)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create bucket: %w", err)
	}

	cache := NewMemory()
	err = db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVariables).ForEach(func(k, v []byte) error {
			var rec storedVariable
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode %q: %w", k, err)
			}
			cache.put(model.Variable{Name: string(k), Value: rec.Value, Description: rec.Description})
			return nil
		})
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: load variables: %w", err)
	}
	return &Bolt{db: db, cache: cache}, nil
}

func (b *Bolt) Variables() []model.Variable { return b.cache.Variables() }

func (b *Bolt) Set(name, value string) error {
	v := model.Variable{Name: name, Value: value}
	if old, ok := b.cache.Get(name); ok {
		v.Description = old.Description
	}
	if err := b.write(v); err != nil {
		return err
	}
	return b.cache.Set(name, value)
}

func (b *Bolt) Seed(vars []model.Variable) error {
	for _, v := range vars {
		if _, ok := b.cache.Get(v.Name); ok {
			continue
		}
		if err := b.write(v); err != nil {
			return err
		}
	}
	return b.cache.Seed(vars)
}

func (b *Bolt) write(v model.Variable) error {
	data, err := json.Marshal(storedVariable{Value: v.Value, Description: v.Description})
	if err != nil {
		return fmt.Errorf("store: encode %q: %w", v.Name, err)
	}
	err = b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVariables).Put([]byte(v.Name), data)
	})
	if err != nil {
		return fmt.Errorf("store: put %q: %w", v.Name, err)
	}
	return nil
}

// Path returns the filesystem path of the underlying database.
func (b *Bolt) Path() string { return b.db.Path() }

func (b *Bolt) Close() error { return b.db.Close() }
