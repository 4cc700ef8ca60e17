package backup

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
	argonTime = 3
	argonMem  = 64 * 1024
	argonPar  = 4
)

// magic prefixes every encrypted snapshot so a plain SQLite file is never
// mistaken for ciphertext.
var magic = []byte("GYB1")

var (
	ErrNotEncrypted  = errors.New("backup: not an encrypted snapshot")
	ErrBadPassphrase = errors.New("backup: wrong passphrase or corrupted snapshot")
)

func generateSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives a 32-byte AES-256 key from a passphrase and salt using Argon2id.
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMem, argonPar, keySize)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// Encrypt seals everything read from src and writes
// [magic][salt][nonce][AES-256-GCM ciphertext] to dst. A fresh salt is
// drawn for every call.
func Encrypt(dst io.Writer, src io.Reader, passphrase string) error {
	plaintext, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	salt, err := generateSalt()
	if err != nil {
		return err
	}
	gcm, err := newGCM(DeriveKey(passphrase, salt))
	if err != nil {
		return err
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, len(magic)+saltSize+nonceSize+len(plaintext)+gcm.Overhead())
	out = append(out, magic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, magic)

	if _, err := dst.Write(out); err != nil {
		return fmt.Errorf("write encrypted snapshot: %w", err)
	}
	return nil
}

// Decrypt reverses Encrypt.
func Decrypt(dst io.Writer, src io.Reader, passphrase string) error {
	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("read encrypted snapshot: %w", err)
	}
	if len(data) < len(magic)+saltSize+nonceSize || !bytes.Equal(data[:len(magic)], magic) {
		return ErrNotEncrypted
	}
	data = data[len(magic):]
	salt := data[:saltSize]
	nonce := data[saltSize : saltSize+nonceSize]
	ciphertext := data[saltSize+nonceSize:]

	gcm, err := newGCM(DeriveKey(passphrase, salt))
	if err != nil {
		return err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, magic)
	if err != nil {
		return ErrBadPassphrase
	}
	if _, err := dst.Write(plaintext); err != nil {
		return fmt.Errorf("write decrypted snapshot: %w", err)
	}
	return nil
}
