package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/crypto/scrypt"
)

// cookieKeySalt fixes the scrypt salt for cookie-key derivation. The secret
// itself is operator-supplied; the salt only separates this derivation from
// other uses of the same secret.
const cookieKeySalt = "workouts-cookie-v1"

// ErrCipherText is returned when a cached value cannot be authenticated.
var ErrCipherText = errors.New("cannot decrypt cache value")

// Codec seals and opens cache values with AES-256-GCM. The key is derived
// from the configured cookie secret via scrypt.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec derives the encryption key and builds a Codec.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("session: cookie secret is required")
	}
	key, err := scrypt.Key([]byte(secret), []byte(cookieKeySalt), 1<<15, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("session: derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("session: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("session: init gcm: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Seal encrypts a value for cookie transport: base64url(nonce || ciphertext).
func (c *Codec) Seal(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("session: nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (c *Codec) Open(encoded string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrCipherText
	}
	if len(raw) < c.aead.NonceSize() {
		return "", ErrCipherText
	}
	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrCipherText
	}
	return string(plaintext), nil
}

// CookieCache is a TokenCache over HTTP cookies for one request/response
// pair. Values are encrypted with the codec and cookie names carry the
// configured prefix so unrelated applications sharing the cookie jar cannot
// collide.
type CookieCache struct {
	codec   *Codec
	prefix  string
	secure  bool
	maxAge  int
	r       *http.Request
	w       http.ResponseWriter
	pending map[string]*string // nil value marks a deletion
}

// NewCookieCache builds a cache bound to one request/response cycle.
func NewCookieCache(codec *Codec, prefix string, secure bool, maxAge int, w http.ResponseWriter, r *http.Request) *CookieCache {
	return &CookieCache{
		codec:   codec,
		prefix:  prefix,
		secure:  secure,
		maxAge:  maxAge,
		r:       r,
		w:       w,
		pending: make(map[string]*string),
	}
}

// Get returns the decrypted value for key. Writes made earlier in the same
// request win over the inbound cookie. An undecryptable cookie reads as
// absent.
func (c *CookieCache) Get(key string) (string, bool) {
	if v, ok := c.pending[key]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}

	cookie, err := c.r.Cookie(c.prefix + key)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	value, err := c.codec.Open(cookie.Value)
	if err != nil {
		return "", false
	}
	return value, true
}

// Set encrypts and stores the value.
func (c *CookieCache) Set(key, value string) error {
	sealed, err := c.codec.Seal(value)
	if err != nil {
		return err
	}
	http.SetCookie(c.w, &http.Cookie{
		Name:     c.prefix + key,
		Value:    sealed,
		Path:     "/",
		MaxAge:   c.maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	v := value
	c.pending[key] = &v
	return nil
}

// Delete expires the cookie.
func (c *CookieCache) Delete(key string) {
	http.SetCookie(c.w, &http.Cookie{
		Name:     c.prefix + key,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	c.pending[key] = nil
}
