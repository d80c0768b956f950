package decoder

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
)

const saltedPrefix = "Salted__"

// EncryptCryptoJS encrypts plaintext with AES-256-CBC the way CryptoJS
// does: an 8-byte salt, the OpenSSL "Salted__" header and an iterative
// MD5 key/IV derivation, base64-encoded as one blob.
func EncryptCryptoJS(plaintext, passphrase string) (string, error) {
	salt, err := randomNonZeroBytes(8)
	if err != nil {
		return "", errors.Wrap(err, "cryptoaes: generating salt")
	}
	key, iv := deriveKeyAndIV(strings.TrimSpace(passphrase), salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", errors.Wrap(err, "cryptoaes: creating cipher")
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	encrypted := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(encrypted, padded)

	blob := make([]byte, 0, len(saltedPrefix)+len(salt)+len(encrypted))
	blob = append(blob, saltedPrefix...)
	blob = append(blob, salt...)
	blob = append(blob, encrypted...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// DecryptCryptoJS reverses EncryptCryptoJS. Unlike the extractors, this
// fails loudly: callers must be able to tell a wrong passphrase apart
// from missing ciphertext.
func DecryptCryptoJS(encrypted, passphrase string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encrypted))
	if err != nil {
		return "", errors.Wrap(err, "cryptoaes: decoding ciphertext")
	}
	if len(blob) < 16 {
		return "", errors.New("cryptoaes: ciphertext shorter than salt header")
	}

	// Layout: "Salted__" (8) | salt (8) | ciphertext.
	salt := blob[8:16]
	ciphertext := blob[16:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", errors.New("cryptoaes: ciphertext is not block-aligned")
	}

	key, iv := deriveKeyAndIV(strings.TrimSpace(passphrase), salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", errors.Wrap(err, "cryptoaes: creating cipher")
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plain, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// deriveKeyAndIV iterates MD5(prevDigest || passphrase || salt) until 48
// bytes of material exist: 32 for the AES key, 16 for the IV.
func deriveKeyAndIV(passphrase string, salt []byte) (key, iv []byte) {
	password := []byte(passphrase)

	var material []byte
	var digest []byte
	for len(material) < 48 {
		h := md5.New()
		h.Write(digest)
		h.Write(password)
		h.Write(salt)
		digest = h.Sum(nil)
		material = append(material, digest...)
	}

	return material[:32], material[32:48]
}

// randomNonZeroBytes draws n bytes, each in [1,245].
func randomNonZeroBytes(n int) ([]byte, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	for i := range raw {
		raw[i] = raw[i]%245 + 1
	}
	return raw, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("cryptoaes: invalid padded length")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, errors.New("cryptoaes: invalid padding")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, errors.New("cryptoaes: invalid padding")
		}
	}
	return data[:len(data)-padding], nil
}
