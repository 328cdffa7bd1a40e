// Package crypto resolves and protects exchange API credentials and signs
// authenticated exchange requests.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	kdfIterations = 480_000
	saltSize      = 16
	keySize       = 32
	envelopeV1    = 1
)

// ErrWrongPassword is returned when a sealed secret fails authentication.
var ErrWrongPassword = errors.New("crypto: wrong password or corrupted secret")

// envelope is the on-disk form of a sealed secret. Binary fields are
// standard base64.
type envelope struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// SecretConfig says where LoadSecret finds the API secret.
type SecretConfig struct {
	RawSecret           string
	EncryptedSecretPath string
	Password            string
}

func aead(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, kdfIterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("crypto: random: %w", err)
	}
	return b, nil
}

// EncryptSecret seals secret under password (PBKDF2-SHA256, AES-256-GCM)
// and returns the indented JSON envelope.
func EncryptSecret(secret, password string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	switch {
	case password == "":
		return nil, errors.New("crypto: password must not be empty")
	case secret == "":
		return nil, errors.New("crypto: secret must not be empty")
	}

	salt, err := randomBytes(saltSize)
	if err != nil {
		return nil, err
	}
	gcm, err := aead(password, salt)
	if err != nil {
		return nil, err
	}
	nonce, err := randomBytes(gcm.NonceSize())
	if err != nil {
		return nil, err
	}

	enc := base64.StdEncoding.EncodeToString
	return json.MarshalIndent(envelope{
		Version:    envelopeV1,
		Salt:       enc(salt),
		Nonce:      enc(nonce),
		Ciphertext: enc(gcm.Seal(nil, nonce, []byte(secret), nil)),
	}, "", "  ")
}

// DecryptSecret opens an envelope produced by EncryptSecret.
func DecryptSecret(sealed []byte, password string) (string, error) {
	if password == "" {
		return "", errors.New("crypto: password must not be empty")
	}
	var env envelope
	if err := json.Unmarshal(sealed, &env); err != nil {
		return "", fmt.Errorf("crypto: parse envelope: %w", err)
	}
	if env.Version != envelopeV1 {
		return "", fmt.Errorf("crypto: unsupported envelope version %d", env.Version)
	}

	var salt, nonce, ciphertext []byte
	for _, f := range []struct {
		name string
		in   string
		out  *[]byte
	}{
		{"salt", env.Salt, &salt},
		{"nonce", env.Nonce, &nonce},
		{"ciphertext", env.Ciphertext, &ciphertext},
	} {
		b, err := base64.StdEncoding.DecodeString(f.in)
		if err != nil {
			return "", fmt.Errorf("crypto: decode %s: %w", f.name, err)
		}
		*f.out = b
	}

	gcm, err := aead(password, salt)
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("crypto: nonce is %d bytes, want %d", len(nonce), gcm.NonceSize())
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrWrongPassword
	}
	return string(plain), nil
}

// LoadSecret returns the raw secret when set, otherwise the decrypted
// contents of the envelope file. With neither it returns "" so public
// endpoints keep working.
func LoadSecret(cfg SecretConfig) (string, error) {
	if s := strings.TrimSpace(cfg.RawSecret); s != "" {
		return s, nil
	}
	if cfg.EncryptedSecretPath == "" {
		return "", nil
	}
	data, err := os.ReadFile(cfg.EncryptedSecretPath)
	if err != nil {
		return "", fmt.Errorf("crypto: read %s: %w", cfg.EncryptedSecretPath, err)
	}
	return DecryptSecret(data, cfg.Password)
}
