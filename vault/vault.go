// Package vault persists a single credential record encrypted with a
// SecretCodec. Files are replaced atomically and never read back partially.
package vault

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yllada/auto-mudfish/common"
)

// envelopeMagic versions the on-disk format.
var envelopeMagic = []byte("AMV1")

// CredentialRecord holds what is needed to sign in to the admin page.
type CredentialRecord struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	AdminPageURL string `json:"adminpage"`
}

// Validate checks that the record can be used to log in.
func (r CredentialRecord) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return errors.New("username is required")
	}
	if r.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

// Info returns the redacted view of the record.
func (r CredentialRecord) Info() CredentialInfo {
	return CredentialInfo{
		Username:     r.Username,
		AdminPageURL: r.AdminPageURL,
		HasPassword:  r.Password != "",
	}
}

// String never includes the password.
func (r CredentialRecord) String() string {
	return fmt.Sprintf("%s@%s (password %s)", r.Username, r.AdminPageURL, common.MaskSecret(r.Password))
}

// CredentialInfo is safe to display.
type CredentialInfo struct {
	Username     string
	AdminPageURL string
	HasPassword  bool
}

// Vault stores one CredentialRecord at a fixed path.
type Vault struct {
	path   string
	codec  common.SecretCodec
	logger common.Logger
}

// New creates a vault backed by path.
func New(path string, codec common.SecretCodec, logger common.Logger) *Vault {
	if logger == nil {
		logger = common.NopLogger{}
	}
	return &Vault{path: path, codec: codec, logger: logger}
}

// DefaultPath returns <config dir>/auto-mudfish/credentials.enc.
func DefaultPath() (string, error) {
	dir, err := common.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, common.CredentialsFileName), nil
}

// Path returns the vault file location.
func (v *Vault) Path() string {
	return v.path
}

// Store encrypts rec and replaces any existing record.
func (v *Vault) Store(rec CredentialRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrVaultWrite, err)
	}
	if rec.AdminPageURL == "" {
		rec.AdminPageURL = common.DefaultDesktopAdminPage
	}
	if err := v.checkPath(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrVaultWrite, err)
	}

	plain, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrVaultWrite, err)
	}
	sealed, err := v.codec.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("%w: encrypt: %v", common.ErrVaultWrite, err)
	}

	envelope := append(append([]byte{}, envelopeMagic...), sealed...)
	encoded := base64.StdEncoding.EncodeToString(envelope)

	if err := atomicWriteFile(v.path, []byte(encoded), 0600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrVaultWrite, err)
	}

	v.logger.Info("Saved credentials for %s", rec.Username)
	return nil
}

// Load decrypts the stored record. It returns ErrVaultNotFound when nothing
// is stored and ErrVaultCorrupt when the file cannot be fully recovered.
func (v *Vault) Load() (CredentialRecord, error) {
	if err := v.checkPath(); err != nil {
		return CredentialRecord{}, fmt.Errorf("%w: %v", common.ErrVaultCorrupt, err)
	}

	data, err := os.ReadFile(v.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			v.logger.Debug("No stored credentials at %s", v.path)
			return CredentialRecord{}, common.ErrVaultNotFound
		}
		return CredentialRecord{}, fmt.Errorf("%w: %v", common.ErrVaultCorrupt, err)
	}

	envelope, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return CredentialRecord{}, fmt.Errorf("%w: not base64", common.ErrVaultCorrupt)
	}
	if !bytes.HasPrefix(envelope, envelopeMagic) {
		return CredentialRecord{}, fmt.Errorf("%w: unknown format", common.ErrVaultCorrupt)
	}

	plain, err := v.codec.Decrypt(envelope[len(envelopeMagic):])
	if err != nil {
		return CredentialRecord{}, fmt.Errorf("%w: decrypt: %v", common.ErrVaultCorrupt, err)
	}

	var rec CredentialRecord
	if err := json.Unmarshal(plain, &rec); err != nil {
		return CredentialRecord{}, fmt.Errorf("%w: malformed record", common.ErrVaultCorrupt)
	}
	if err := rec.Validate(); err != nil {
		return CredentialRecord{}, fmt.Errorf("%w: %v", common.ErrVaultCorrupt, err)
	}
	if rec.AdminPageURL == "" {
		rec.AdminPageURL = common.DefaultDesktopAdminPage
	}
	return rec, nil
}

// Clear deletes the stored record. Clearing an empty vault is not an error.
func (v *Vault) Clear() error {
	err := os.Remove(v.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", common.ErrVaultWrite, err)
	}
	if err == nil {
		v.logger.Info("Cleared stored credentials")
	}
	return nil
}

// Exists reports whether a record file is present. It does not decrypt.
func (v *Vault) Exists() bool {
	info, err := os.Stat(v.path)
	return err == nil && info.Mode().IsRegular()
}

// Info loads the record and returns its redacted view.
func (v *Vault) Info() (CredentialInfo, error) {
	rec, err := v.Load()
	if err != nil {
		return CredentialInfo{}, err
	}
	return rec.Info(), nil
}

// checkPath refuses symlinked vault files or directories.
func (v *Vault) checkPath() error {
	if common.IsSymlink(filepath.Dir(v.path)) {
		return fmt.Errorf("refusing symlinked directory %s", filepath.Dir(v.path))
	}
	if common.IsSymlink(v.path) {
		return fmt.Errorf("refusing symlinked file %s", v.path)
	}
	return nil
}
