// Package keyring provides the operating-system-user scoped SecretCodec.
// It keeps a random data key in the system keyring when available, falling
// back to a key derived from machine and user identity when not.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"strconv"
	"sync"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/hkdf"

	"github.com/yllada/auto-mudfish/common"
)

const (
	keySize = 32

	// Key source markers, stored as the first byte of every sealed blob.
	sourceKeyring byte = 'K'
	sourceDerived byte = 'D'
)

// Common errors returned by codec operations.
var (
	ErrNotFound     = errors.New("protection key not found")
	ErrUnavailable  = errors.New("keyring service unavailable")
	ErrInvalidBlob  = errors.New("sealed data is malformed")
	ErrUnknownStore = errors.New("sealed data uses an unknown key source")
)

// Backend is the minimal keyring surface the codec needs.
type Backend interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
	Delete(service, account string) error
}

type systemBackend struct{}

func (systemBackend) Get(service, account string) (string, error) {
	v, err := keyring.Get(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return v, err
}

func (systemBackend) Set(service, account, value string) error {
	return keyring.Set(service, account, value)
}

func (systemBackend) Delete(service, account string) error {
	err := keyring.Delete(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// Options configures a Codec. Zero values select the system keyring and
// the current OS user.
type Options struct {
	Service string
	Account string
	Backend Backend
	// Identity feeds the derived-key fallback; defaults to machine id + uid.
	Identity func() []byte
	// RequireKeyring disables the derived-key fallback: Encrypt fails with
	// ErrUnavailable when no keyring service answers.
	RequireKeyring bool
	Logger         common.Logger
}

// Codec seals data with a key held for the current OS user.
//
// The system keyring (Windows Credential Manager, macOS Keychain, Secret
// Service) holds a random data key per user. Where no keyring service is
// reachable the key is derived with HKDF from the machine id and user id,
// which binds the blob to this account on this machine.
//
// The derived key is not secret: machine id, uid and account name are
// readable by every local user, so a blob sealed with it is kept from other
// users only by the permissions of the file holding it. Set
// Options.RequireKeyring to refuse that mode.
type Codec struct {
	service        string
	account        string
	backend        Backend
	identity       func() []byte
	requireKeyring bool
	logger         common.Logger

	mu         sync.Mutex
	keyringKey []byte
}

// NewCodec creates a codec for the current user.
func NewCodec(opts Options) *Codec {
	c := &Codec{
		service:  opts.Service,
		account:  opts.Account,
		backend:  opts.Backend,
		identity: opts.Identity,
		logger:   opts.Logger,

		requireKeyring: opts.RequireKeyring,
	}
	if c.service == "" {
		c.service = common.KeyringService
	}
	if c.account == "" {
		c.account = CurrentAccount()
	}
	if c.backend == nil {
		c.backend = systemBackend{}
	}
	if c.identity == nil {
		c.identity = defaultIdentity
	}
	if c.logger == nil {
		c.logger = common.NopLogger{}
	}
	return c
}

// CurrentAccount returns the OS account name used to scope the key.
func CurrentAccount() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	for _, env := range []string{"USER", "USERNAME"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return "default"
}

// Encrypt seals plaintext, preferring the keyring-held key.
func (c *Codec) Encrypt(plaintext []byte) ([]byte, error) {
	key, err := c.loadOrCreateKeyringKey()
	source := sourceKeyring
	if err != nil {
		if c.requireKeyring {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		c.logger.Warn("System keyring unavailable (%v), using derived key; the file mode alone protects it from other local users", err)
		key = c.derivedKey()
		source = sourceDerived
	}

	sealed, err := seal(key, plaintext)
	if err != nil {
		return nil, err
	}
	return append([]byte{source}, sealed...), nil
}

// Decrypt opens data sealed by Encrypt for the same OS user.
func (c *Codec) Decrypt(data []byte) ([]byte, error) {
	if len(data) < 1 {
		return nil, ErrInvalidBlob
	}

	var key []byte
	switch data[0] {
	case sourceKeyring:
		k, err := c.existingKeyringKey()
		if err != nil {
			return nil, err
		}
		key = k
	case sourceDerived:
		key = c.derivedKey()
	default:
		return nil, ErrUnknownStore
	}
	return open(key, data[1:])
}

// Forget removes the keyring-held key. Data sealed with it becomes
// unrecoverable.
func (c *Codec) Forget() error {
	c.mu.Lock()
	c.keyringKey = nil
	c.mu.Unlock()
	return c.backend.Delete(c.service, c.account)
}

func (c *Codec) existingKeyringKey() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keyringKey != nil {
		return c.keyringKey, nil
	}

	encoded, err := c.backend.Get(c.service, c.account)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(key) != keySize {
		return nil, fmt.Errorf("%w: stored key is malformed", ErrInvalidBlob)
	}
	c.keyringKey = key
	return key, nil
}

func (c *Codec) loadOrCreateKeyringKey() ([]byte, error) {
	key, err := c.existingKeyringKey()
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	key = make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	if err := c.backend.Set(c.service, c.account, base64.StdEncoding.EncodeToString(key)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c.mu.Lock()
	c.keyringKey = key
	c.mu.Unlock()
	c.logger.Debug("Created protection key in system keyring for %s", c.account)
	return key, nil
}

func (c *Codec) derivedKey() []byte {
	r := hkdf.New(sha256.New, c.identity(), []byte(c.service), []byte("vault-key:"+c.account))
	key := make([]byte, keySize)
	// hkdf only fails past 255*HashLen bytes.
	_, _ = io.ReadFull(r, key)
	return key
}

func defaultIdentity() []byte {
	return []byte(machineID() + "|" + strconv.Itoa(os.Getuid()) + "|" + CurrentAccount())
}

// seal encrypts with AES-256-GCM, prefixing the random nonce.
func seal(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func open(key, data []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(data) < gcm.NonceSize() {
		return nil, ErrInvalidBlob
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// StaticCodec seals with a fixed key. It exists for tests and for callers
// that manage key custody themselves.
type StaticCodec struct {
	key []byte
}

// NewStaticCodec derives a 256-bit key from secret.
func NewStaticCodec(secret []byte) *StaticCodec {
	sum := sha256.Sum256(secret)
	return &StaticCodec{key: sum[:]}
}

func (s *StaticCodec) Encrypt(plaintext []byte) ([]byte, error) {
	return seal(s.key, plaintext)
}

func (s *StaticCodec) Decrypt(data []byte) ([]byte, error) {
	return open(s.key, data)
}

var (
	_ common.SecretCodec = (*Codec)(nil)
	_ common.SecretCodec = (*StaticCodec)(nil)
)
