package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Signer holds the runner's ed25519 identity key and signs journal records
// with it.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// Generate creates a fresh keypair.
func Generate() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Signer{priv: priv, pub: pub}, nil
}

// Load reads a hex-encoded keypair from disk.
func Load(pubPath, privPath string) (*Signer, error) {
	pub, err := loadKey(pubPath, ed25519.PublicKeySize)
	if err != nil {
		return nil, fmt.Errorf("load public key: %w", err)
	}
	priv, err := loadKey(privPath, ed25519.PrivateKeySize)
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}
	return &Signer{priv: priv, pub: pub}, nil
}

// LoadOrGenerate loads the keypair from dir, generating and saving a new one
// if none exists yet.
func LoadOrGenerate(dir string) (*Signer, error) {
	pubPath := filepath.Join(dir, "runner.pub")
	privPath := filepath.Join(dir, "runner.priv")

	if _, err := os.Stat(privPath); errors.Is(err, os.ErrNotExist) {
		s, err := Generate()
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
		if err := s.Save(pubPath, privPath); err != nil {
			return nil, err
		}
		return s, nil
	}
	return Load(pubPath, privPath)
}

// Save writes the keypair hex-encoded to the given paths.
func (s *Signer) Save(pubPath, privPath string) error {
	if err := os.WriteFile(pubPath, []byte(hex.EncodeToString(s.pub)), 0o600); err != nil {
		return err
	}
	return os.WriteFile(privPath, []byte(hex.EncodeToString(s.priv)), 0o600)
}

// Sign returns the hex-encoded signature of data.
func (s *Signer) Sign(data []byte) string {
	return hex.EncodeToString(ed25519.Sign(s.priv, data))
}

// PublicKeyHex returns the hex-encoded public key.
func (s *Signer) PublicKeyHex() string {
	return hex.EncodeToString(s.pub)
}

// Verify checks a hex signature over data against a hex public key.
func Verify(pubHex string, data []byte, sigHex string) (bool, error) {
	pub, err := hex.DecodeString(pubHex)
	if err != nil {
		return false, err
	}
	if len(pub) != ed25519.PublicKeySize {
		return false, errors.New("invalid public key size")
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(ed25519.PublicKey(pub), data, sig), nil
}

func loadKey(path string, size int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(string(data))
	if err != nil {
		return nil, err
	}
	if len(key) != size {
		return nil, errors.New("invalid key size")
	}
	return key, nil
}
