package session

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	sessionBucket = "session"
	tokenKey      = "token"
	userKey       = "user"
)

// BoltStore persists the session in a local bbolt file so it survives
// restarts of the console
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the session database at path
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening session db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(sessionBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating session bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Token returns the stored token, or ErrNoToken when absent or expired
func (b *BoltStore) Token() (string, error) {
	var token string
	err := b.db.View(func(tx *bbolt.Tx) error {
		token = string(tx.Bucket([]byte(sessionBucket)).Get([]byte(tokenKey)))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	if token == "" || expired(token, time.Now()) {
		return "", ErrNoToken
	}
	return token, nil
}

// User returns the account the token was issued for
func (b *BoltStore) User() (User, error) {
	var data []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		if raw := tx.Bucket([]byte(sessionBucket)).Get([]byte(userKey)); raw != nil {
			data = append([]byte(nil), raw...)
		}
		return nil
	})
	if err != nil {
		return User{}, fmt.Errorf("reading user: %w", err)
	}
	if data == nil {
		return User{}, ErrNoToken
	}
	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return User{}, fmt.Errorf("unmarshaling user: %w", err)
	}
	return user, nil
}

// Set stores a token and its user, replacing any previous session
func (b *BoltStore) Set(token string, user User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshaling user: %w", err)
	}
	err = b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		if err := bucket.Put([]byte(tokenKey), []byte(token)); err != nil {
			return err
		}
		return bucket.Put([]byte(userKey), data)
	})
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Clear removes the stored session
func (b *BoltStore) Clear() error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucket))
		if err := bucket.Delete([]byte(tokenKey)); err != nil {
			return err
		}
		return bucket.Delete([]byte(userKey))
	})
	if err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (b *BoltStore) Close() error {
	return b.db.Close()
}
