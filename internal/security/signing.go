package security

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Key file names inside a key directory.
const (
	PublicKeyFile  = "ledger.pub"
	PrivateKeyFile = "ledger.priv"
)

// KeyPair is the ed25519 identity that signs ledger entries.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateKeyPair creates a new ed25519 key pair
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Public: pub, Private: priv}, nil
}

// Save writes both keys hex-encoded into dir.
func (kp *KeyPair) Save(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, PublicKeyFile), []byte(hex.EncodeToString(kp.Public)), 0600); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, PrivateKeyFile), []byte(hex.EncodeToString(kp.Private)), 0600)
}

// LoadKeyPair reads a key pair saved by Save.
func LoadKeyPair(dir string) (*KeyPair, error) {
	pub, err := readHexKey(filepath.Join(dir, PublicKeyFile), ed25519.PublicKeySize)
	if err != nil {
		return nil, fmt.Errorf("load public key: %w", err)
	}
	priv, err := readHexKey(filepath.Join(dir, PrivateKeyFile), ed25519.PrivateKeySize)
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}
	kp := &KeyPair{Public: pub, Private: priv}
	if !kp.Public.Equal(kp.Private.Public()) {
		return nil, errors.New("public key does not belong to private key")
	}
	return kp, nil
}

// EnsureKeyPair loads the key pair in dir, generating and saving one if none exists.
// The boolean reports whether a new pair was generated.
func EnsureKeyPair(dir string) (*KeyPair, bool, error) {
	if _, err := os.Stat(filepath.Join(dir, PublicKeyFile)); errors.Is(err, os.ErrNotExist) {
		kp, err := GenerateKeyPair()
		if err != nil {
			return nil, false, err
		}
		if err := kp.Save(dir); err != nil {
			return nil, false, err
		}
		return kp, true, nil
	}
	kp, err := LoadKeyPair(dir)
	return kp, false, err
}

// Sign signs data and returns the hex signature.
func (kp *KeyPair) Sign(data []byte) string {
	return hex.EncodeToString(ed25519.Sign(kp.Private, data))
}

// PublicHex returns the hex-encoded public key.
func (kp *KeyPair) PublicHex() string {
	return hex.EncodeToString(kp.Public)
}

// VerifySignature verifies a hex signature of data using a public key
func VerifySignature(pub ed25519.PublicKey, data []byte, sigHex string) (bool, error) {
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, data, sig), nil
}

// VerifySignatureFromHex verifies when the public key is hex encoded
func VerifySignatureFromHex(pubHex string, data []byte, sigHex string) (bool, error) {
	pubBytes, err := hex.DecodeString(pubHex)
	if err != nil {
		return false, err
	}
	if len(pubBytes) != ed25519.PublicKeySize {
		return false, errors.New("invalid public key size")
	}
	return VerifySignature(ed25519.PublicKey(pubBytes), data, sigHex)
}

func readHexKey(path string, size int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, err
	}
	if len(key) != size {
		return nil, fmt.Errorf("invalid key size %d", len(key))
	}
	return key, nil
}
