// Package fieldcrypt encrypts individual stored values under a per-artifact
// key. Tokens are URL-safe base64 of nonce||XChaCha20-Poly1305 ciphertext, so
// they sit in a CSV cell like any other string. Fernet tokens written by the
// earlier archive are still readable: both schemes use a 32-byte URL-safe
// base64 key.
package fieldcrypt

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/fernet/fernet-go"
	"golang.org/x/crypto/chacha20poly1305"
)

var encoding = base64.URLEncoding

// Key is a base64-encoded 256-bit artifact key as stored in the artifacts table
type Key string

// GenerateKey returns a fresh random key
func GenerateKey() (Key, error) {
	raw := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return Key(encoding.EncodeToString(raw)), nil
}

func (k Key) bytes() ([]byte, error) {
	raw, err := encoding.DecodeString(string(k))
	if err != nil {
		return nil, fmt.Errorf("malformed key: %w", err)
	}
	if len(raw) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("malformed key: %d bytes, want %d", len(raw), chacha20poly1305.KeySize)
	}
	return raw, nil
}

// Encrypt seals plaintext under key with a random nonce
func Encrypt(key Key, plaintext string) (string, error) {
	raw, err := key.bytes()
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(raw)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return encoding.EncodeToString(sealed), nil
}

// Decrypt opens a token. It never fails outright: any problem is reported
// through the returned Result.
func Decrypt(key Key, token string) Result {
	text, err := open(key, token)
	if err != nil {
		if legacy, ok := openFernet(key, token); ok {
			return OK(legacy)
		}
		return Failed(err.Error())
	}
	return OK(text)
}

// openFernet reads a Fernet token. Tokens carry an HMAC, so a wrong key or
// a token of the current scheme never yields text. Token age is not checked.
func openFernet(key Key, token string) (text string, ok bool) {
	if token == "" {
		return "", false
	}
	k, err := fernet.DecodeKey(string(key))
	if err != nil {
		return "", false
	}

	// fernet-go slices the payload unchecked once the HMAC matches
	defer func() {
		if recover() != nil {
			text, ok = "", false
		}
	}()

	msg := fernet.VerifyAndDecrypt([]byte(token), 0, []*fernet.Key{k})
	if msg == nil {
		return "", false
	}
	return string(msg), true
}

var errEmptyToken = errors.New("empty token")

func open(key Key, token string) (string, error) {
	if token == "" {
		return "", errEmptyToken
	}
	raw, err := key.bytes()
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(raw)
	if err != nil {
		return "", err
	}

	sealed, err := encoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("malformed token: %w", err)
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return "", fmt.Errorf("malformed token: too short")
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Result is the outcome of a decryption: plaintext, or the reason it failed
type Result struct {
	text   string
	reason string
	failed bool
}

// OK wraps a successfully decrypted value
func OK(text string) Result {
	return Result{text: text}
}

// Failed records a decryption failure
func Failed(reason string) Result {
	return Result{reason: reason, failed: true}
}

// OK reports whether decryption succeeded
func (r Result) OK() bool {
	return !r.failed
}

// Text returns the plaintext and whether it is valid
func (r Result) Text() (string, bool) {
	return r.text, !r.failed
}

// Reason describes why decryption failed; empty on success
func (r Result) Reason() string {
	return r.reason
}

// String renders the plaintext, or a placeholder naming the failure
func (r Result) String() string {
	if r.failed {
		return "[Decryption Failed: " + r.reason + "]"
	}
	return r.text
}
