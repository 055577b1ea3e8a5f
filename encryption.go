package driftwatch

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// batchNonceSize is the nonce size for AES-GCM.
	batchNonceSize = 12
	// batchSaltSize is the salt size for key derivation.
	batchSaltSize = 32
	// batchKeySize is the AES-256 key size.
	batchKeySize = 32
	// batchKDFIterations is the PBKDF2 iteration count.
	batchKDFIterations = 100000
)

// batchEncryptor seals archive batches with AES-GCM. Keys are derived from a
// password via PBKDF2; the salt is prepended to each sealed batch so a batch
// is decryptable from the password alone.
type batchEncryptor struct {
	password string
	key      []byte
}

// newBatchEncryptor creates an encryptor from a raw 32-byte key or a
// password. With a password every Seal derives a fresh key from a fresh
// salt.
func newBatchEncryptor(key []byte, password string) (*batchEncryptor, error) {
	if len(key) > 0 {
		if len(key) != batchKeySize {
			return nil, errors.New("archive key must be 32 bytes for AES-256")
		}
		return &batchEncryptor{key: key}, nil
	}
	if password == "" {
		return nil, errors.New("archive encryption enabled but no key or password provided")
	}
	return &batchEncryptor{password: password}, nil
}

// Seal encrypts a batch and returns salt || nonce || ciphertext. With a raw
// key the salt bytes are zero and unused.
func (e *batchEncryptor) Seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, batchSaltSize)
	key := e.key
	if key == nil {
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, err
		}
		key = pbkdf2.Key([]byte(e.password), salt, batchKDFIterations, batchKeySize, sha256.New)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, batchNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, batchSaltSize+batchNonceSize+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// Open decrypts a sealed batch produced by Seal.
func (e *batchEncryptor) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < batchSaltSize+batchNonceSize {
		return nil, errors.New("sealed batch too short")
	}
	salt := sealed[:batchSaltSize]
	nonce := sealed[batchSaltSize : batchSaltSize+batchNonceSize]
	ciphertext := sealed[batchSaltSize+batchNonceSize:]

	key := e.key
	if key == nil {
		key = pbkdf2.Key([]byte(e.password), salt, batchKDFIterations, batchKeySize, sha256.New)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
