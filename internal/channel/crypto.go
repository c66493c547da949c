package channel

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100000
	keyLength        = 32
	saltLength       = 16
	nonceLength      = 12
)

// ErrDecrypt is returned when an encrypted API key cannot be opened
var ErrDecrypt = errors.New("failed to decrypt api key")

// encryptedPayload is the stored form of an encrypted API key.
// Encrypted holds the AES-GCM ciphertext followed by its tag.
type encryptedPayload struct {
	Encrypted string `json:"encrypted"`
	Salt      string `json:"salt"`
	IV        string `json:"iv"`
}

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keyLength, sha256.New)
}

// DecryptAPIKey opens an API key encrypted with AES-256-GCM under a
// PBKDF2-SHA256 key derived from passphrase
func DecryptAPIKey(encrypted, passphrase string) (string, error) {
	var payload encryptedPayload
	if err := json.Unmarshal([]byte(encrypted), &payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(payload.Encrypted)
	if err != nil {
		return "", fmt.Errorf("%w: encrypted: %v", ErrDecrypt, err)
	}
	salt, err := base64.StdEncoding.DecodeString(payload.Salt)
	if err != nil {
		return "", fmt.Errorf("%w: salt: %v", ErrDecrypt, err)
	}
	iv, err := base64.StdEncoding.DecodeString(payload.IV)
	if err != nil || len(iv) == 0 {
		return "", fmt.Errorf("%w: invalid iv", ErrDecrypt)
	}

	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	plain, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plain), nil
}

// EncryptAPIKey produces the stored form accepted by DecryptAPIKey
func EncryptAPIKey(apiKey, passphrase string) (string, error) {
	salt := make([]byte, saltLength)
	iv := make([]byte, nonceLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(encryptedPayload{
		Encrypted: base64.StdEncoding.EncodeToString(gcm.Seal(nil, iv, []byte(apiKey), nil)),
		Salt:      base64.StdEncoding.EncodeToString(salt),
		IV:        base64.StdEncoding.EncodeToString(iv),
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
