// Package cryptox protects small secrets at rest with AES-256-CBC.
//
// Tokens have the form hex(iv) + ":" + hex(ciphertext). The IV is 16 random
// bytes drawn per call. The encrypted payload is a 16-byte check block,
// the truncated SHA-256 of the plaintext, followed by the plaintext, PKCS#7
// padded.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/mailvault/internal/common"
	"golang.org/x/crypto/argon2"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

const tokenDelimiter = ":"

// checkSize is the length of the plaintext digest sealed with every token.
const checkSize = 16

// keySalt is fixed on purpose: the same configured passphrase must always
// derive the same key, otherwise every stored record becomes unreadable.
var keySalt = []byte("mailvault/credential-key/v1")

// DeriveKey turns the configured secret into a 32-byte key. A secret of
// exactly 64 hex characters is used as the raw key; anything else is
// stretched with argon2id.
func DeriveKey(secret string) []byte {
	if len(secret) == hex.EncodedLen(KeySize) {
		if raw, err := hex.DecodeString(secret); err == nil {
			return raw
		}
	}
	return argon2.IDKey([]byte(secret), keySalt, 1, 64*1024, 4, KeySize)
}

// MakeVerifier returns a fingerprint of key that is safe to log, so two
// processes can be checked for the same key without revealing it.
func MakeVerifier(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:4])
}

// Encrypt seals plaintext under key and returns the token encoding.
func Encrypt(plaintext string, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	iv := common.GenerateRandByteArray(aes.BlockSize)
	payload := append(checksum([]byte(plaintext)), plaintext...)
	padded := pad(payload, aes.BlockSize)
	defer common.WipeByteArray(padded)

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + tokenDelimiter + hex.EncodeToString(ciphertext), nil
}

// Decrypt opens a token produced by Encrypt.
//
// It fails with common.ErrMalformedToken when the token cannot be parsed and
// with common.ErrDecryptionFailed when the padding or the check block does
// not verify, which is what a wrong key or corrupted ciphertext produces.
func Decrypt(token string, key []byte) (string, error) {
	ivHex, ctHex, ok := strings.Cut(token, tokenDelimiter)
	if !ok {
		return "", fmt.Errorf("%w: missing delimiter", common.ErrMalformedToken)
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return "", fmt.Errorf("%w: iv is not hex", common.ErrMalformedToken)
	}
	ciphertext, err := hex.DecodeString(ctHex)
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext is not hex", common.ErrMalformedToken)
	}
	if len(iv) != aes.BlockSize {
		return "", fmt.Errorf("%w: iv must be %d bytes", common.ErrMalformedToken, aes.BlockSize)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext is not a whole number of blocks", common.ErrMalformedToken)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	payload, err := unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", err
	}
	if len(payload) < checkSize {
		return "", common.ErrDecryptionFailed
	}
	sum, body := payload[:checkSize], payload[checkSize:]
	if subtle.ConstantTimeCompare(sum, checksum(body)) != 1 {
		return "", common.ErrDecryptionFailed
	}
	return string(body), nil
}

func checksum(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:checkSize]
}

func pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, blockSize int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, common.ErrDecryptionFailed
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, common.ErrDecryptionFailed
		}
	}
	return b[:len(b)-n], nil
}

// Cipher binds Encrypt/Decrypt to one process-wide key.
type Cipher struct {
	key []byte
}

// NewCipher validates key and returns a Cipher using it.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("cipher key must be %d bytes, got %d", KeySize, len(key))
	}
	k := make([]byte, KeySize)
	copy(k, key)
	return &Cipher{key: k}, nil
}

// Encrypt seals plaintext with the bound key.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	return Encrypt(plaintext, c.key)
}

// Decrypt opens token with the bound key.
func (c *Cipher) Decrypt(token string) (string, error) {
	return Decrypt(token, c.key)
}

// SealJSON serializes v to JSON and encrypts it.
func (c *Cipher) SealJSON(v any) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(plaintext)
	return c.Encrypt(string(plaintext))
}

// OpenJSON decrypts token and unmarshals the JSON payload into v.
// A payload that decrypts but does not parse is reported as
// common.ErrDecryptionFailed.
func (c *Cipher) OpenJSON(token string, v any) error {
	plaintext, err := c.Decrypt(token)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(plaintext), v); err != nil {
		return fmt.Errorf("%w: payload is not valid json", common.ErrDecryptionFailed)
	}
	return nil
}
