package taygedo

import (
	"crypto/aes"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// secret is the shared signing key baked into the official app.
const secret = "89155cc4e8634ec5b1b6364013b23e3e"

// GenerateSign builds the request signature: sort the parameter keys,
// concatenate the values in key order, append the shared secret and MD5 the
// result.
func GenerateSign(params url.Values) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		sb.WriteString(params.Get(key))
	}
	sb.WriteString(secret)

	sum := md5.Sum([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// AESBase64Encode encrypts plaintext with AES-ECB (key = last 16 bytes of
// the shared secret, PKCS7 padding) and base64-encodes the result. The login
// endpoint expects the phone number and captcha in this form.
func AESBase64Encode(plaintext string) (string, error) {
	key := []byte(secret[len(secret)-16:])
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	padded := pkcs7Pad([]byte(plaintext), block.BlockSize())
	encrypted := make([]byte, len(padded))
	for i := 0; i < len(padded); i += block.BlockSize() {
		block.Encrypt(encrypted[i:], padded[i:i+block.BlockSize()])
	}

	return base64.StdEncoding.EncodeToString(encrypted), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

// RandomDeviceID generates the 32-character lowercase hex device identifier
// created once per account at login.
func RandomDeviceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
