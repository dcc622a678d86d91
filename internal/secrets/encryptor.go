package secrets

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltedPrefix = "Salted__"
	saltSize     = 8
	keySize      = 32
	iterations   = 10000
)

// Encryptor encrypts stored password values the way
// "openssl enc -aes-256-cbc -pbkdf2 -md sha256 -a" does, so the gateway can
// decrypt them with the same passphrase.
type Encryptor struct {
	passphrase []byte
}

// NewEncryptor returns an Encryptor for passphrase.
func NewEncryptor(passphrase string) (*Encryptor, error) {
	if passphrase == "" {
		return nil, errors.New("encryption passphrase is empty")
	}
	return &Encryptor{passphrase: []byte(passphrase)}, nil
}

func (e *Encryptor) deriveKey(salt []byte) (key, iv []byte) {
	dk := pbkdf2.Key(e.passphrase, salt, iterations, keySize+aes.BlockSize, sha256.New)
	return dk[:keySize], dk[keySize:]
}

// Encrypt returns the base64 encoded, salted ciphertext of plaintext.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	key, iv := e.deriveKey(salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}
	data := pad([]byte(plaintext))
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)

	buf := make([]byte, 0, len(saltedPrefix)+saltSize+len(out))
	buf = append(buf, saltedPrefix...)
	buf = append(buf, salt...)
	buf = append(buf, out...)
	return base64.StdEncoding.EncodeToString(buf), nil
}

// Decrypt reverses Encrypt.
func (e *Encryptor) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}
	header := len(saltedPrefix) + saltSize
	if len(raw) < header+aes.BlockSize || !bytes.HasPrefix(raw, []byte(saltedPrefix)) {
		return "", errors.New("ciphertext is not salted")
	}
	body := raw[header:]
	if len(body)%aes.BlockSize != 0 {
		return "", errors.New("ciphertext is not a multiple of the block size")
	}
	key, iv := e.deriveKey(raw[len(saltedPrefix):header])
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}
	out := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, body)
	plain, err := unpad(out)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.New("empty plaintext")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, errors.New("wrong passphrase or corrupt ciphertext")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.New("wrong passphrase or corrupt ciphertext")
		}
	}
	return b[:len(b)-n], nil
}
