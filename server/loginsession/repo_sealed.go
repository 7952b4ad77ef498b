package loginsession

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/jrsteele09/go-onedrive-upload/internal/errors"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// Sealer encrypts session token material with NaCl secretbox.
type Sealer struct {
	key [32]byte
}

// NewSealer derives the secretbox key from an arbitrary-length secret.
func NewSealer(secret string) *Sealer {
	return &Sealer{key: blake2b.Sum256([]byte(secret))}
}

// Seal returns nonce||box.
func (s *Sealer) Seal(plain []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &s.key), nil
}

func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, errors.ErrSessionSealed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, errors.ErrSessionSealed
	}
	return plain, nil
}

// SealedRepo wraps a Repo so TokenCache and AccessToken are only ever stored sealed.
type SealedRepo struct {
	inner  Repo
	sealer *Sealer
}

var _ Repo = (*SealedRepo)(nil)

func NewSealedRepo(inner Repo, sealer *Sealer) *SealedRepo {
	return &SealedRepo{inner: inner, sealer: sealer}
}

func (r *SealedRepo) Upsert(sessionID string, session Session) error {
	sealed := session.Clone()

	if len(sealed.TokenCache) > 0 {
		box, err := r.sealer.Seal(sealed.TokenCache)
		if err != nil {
			return errors.Wrapf(err, "sealing token cache")
		}
		sealed.TokenCache = box
	}
	if sealed.AccessToken != "" {
		box, err := r.sealer.Seal([]byte(sealed.AccessToken))
		if err != nil {
			return errors.Wrapf(err, "sealing access token")
		}
		sealed.AccessToken = base64.RawStdEncoding.EncodeToString(box)
	}

	return r.inner.Upsert(sessionID, sealed)
}

func (r *SealedRepo) Get(sessionID string) (Session, error) {
	session, err := r.inner.Get(sessionID)
	if err != nil {
		return Session{}, err
	}

	if len(session.TokenCache) > 0 {
		plain, err := r.sealer.Open(session.TokenCache)
		if err != nil {
			return Session{}, err
		}
		session.TokenCache = plain
	}
	if session.AccessToken != "" {
		box, err := base64.RawStdEncoding.DecodeString(session.AccessToken)
		if err != nil {
			return Session{}, errors.ErrSessionSealed
		}
		plain, err := r.sealer.Open(box)
		if err != nil {
			return Session{}, err
		}
		session.AccessToken = string(plain)
	}

	return session, nil
}

func (r *SealedRepo) Delete(sessionID string) error {
	return r.inner.Delete(sessionID)
}
