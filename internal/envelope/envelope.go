package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// KeySize is the required length of a session key in bytes (AES-256).
const KeySize = 32

var (
	// ErrAuthentication indicates the integrity tag did not match the
	// received payload. The envelope must be treated as tampered and its
	// ciphertext never decrypted.
	ErrAuthentication = errors.New("envelope authentication failed")

	// ErrMalformed indicates the wire format could not be parsed at all.
	ErrMalformed = errors.New("malformed envelope")
)

// Seal encrypts plaintext under key with AES-256-CBC and authenticates the
// result with HMAC-SHA256 over iv||ciphertext (encrypt-then-MAC). A fresh
// random IV is drawn on every call; reusing an IV under the same key would
// break confidentiality, so callers never supply one. The wire format is
// base64(iv):base64(ciphertext):hex(hmac).
func Seal(plaintext, key []byte) (string, error) {
	block, err := newCipher(key)
	if err != nil {
		return "", err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	padded := pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	tag := computeTag(key, iv, ciphertext)

	return base64.StdEncoding.EncodeToString(iv) + ":" +
		base64.StdEncoding.EncodeToString(ciphertext) + ":" +
		hex.EncodeToString(tag), nil
}

// Open verifies the integrity tag of a sealed message and, only on a match,
// decrypts and returns the plaintext. Tag comparison is constant time. Any
// mismatch or parse failure yields ErrAuthentication / ErrMalformed without
// touching the ciphertext.
func Open(sealed string, key []byte) ([]byte, error) {
	block, err := newCipher(key)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(sealed, ":")
	if len(parts) != 3 {
		return nil, ErrMalformed
	}
	iv, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil || len(iv) != aes.BlockSize {
		return nil, ErrMalformed
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrMalformed
	}
	tag, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, ErrMalformed
	}

	if !hmac.Equal(tag, computeTag(key, iv, ciphertext)) {
		return nil, ErrAuthentication
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plaintext, err := unpad(padded, aes.BlockSize)
	if err != nil {
		// Padding cannot be wrong once the tag verified; treat it as
		// tampering anyway rather than returning corrupted bytes.
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

// NewKey generates a fresh random session key.
func NewKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}
	return key, nil
}

func newCipher(key []byte) (cipher.Block, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("session key must be %d bytes, got %d", KeySize, len(key))
	}
	return aes.NewCipher(key)
}

func computeTag(key, iv, ciphertext []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(iv)
	mac.Write(ciphertext)
	return mac.Sum(nil)
}

// pad applies PKCS#7 padding.
func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
