package api

import (
	"encoding/json"

	"github.com/EXyrus/tabularasa/internal/errors"
	"github.com/EXyrus/tabularasa/storage"
	"golang.org/x/oauth2"
)

// TokenStore keeps the session token in durable storage so a restarted shell can restore
// its session silently.
type TokenStore struct {
	store storage.Store
}

func NewTokenStore(store storage.Store) *TokenStore {
	return &TokenStore{store: store}
}

// Load returns errors.ErrNoStoredToken when nothing usable is stored.
func (ts *TokenStore) Load() (*oauth2.Token, error) {
	raw, ok, err := ts.store.Get(storage.KeyToken)
	if err != nil {
		return nil, errors.Wrapf(err, "[TokenStore.Load]")
	}
	if !ok || raw == "" {
		return nil, errors.ErrNoStoredToken
	}
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, errors.Wrapf(errors.ErrNoStoredToken, "[TokenStore.Load] decode: %v", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.ErrNoStoredToken
	}
	return &tok, nil
}

func (ts *TokenStore) Save(tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return errors.Wrapf(errors.ErrInvalidToken, "[TokenStore.Save]")
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return errors.Wrapf(err, "[TokenStore.Save] encode")
	}
	return ts.store.Set(storage.KeyToken, string(data))
}

func (ts *TokenStore) Clear() error {
	return ts.store.Delete(storage.KeyToken)
}
