package session

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"crypto/sha256"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Chromium derives its cookie key with PBKDF2-SHA1 over a fixed salt. On
// Linux the password is the hardcoded "peanuts" (1 iteration); on macOS it
// comes from the login keychain (1003 iterations).
const (
	keySalt   = "saltysalt"
	keyLength = 16
)

var errUnsupportedOS = errors.New("encrypted cookie values are not supported on this OS (Windows DPAPI is not implemented); export cookies from a Linux or macOS browser profile")

// storeKey returns the AES key guarding v10/v11 cookie values for a browser.
func storeKey(browser string) ([]byte, error) {
	switch runtime.GOOS {
	case "linux":
		return pbkdf2.Key([]byte("peanuts"), []byte(keySalt), 1, keyLength, sha1.New), nil
	case "darwin":
		pw, err := keychainPassword(browser)
		if err != nil {
			return nil, err
		}
		return pbkdf2.Key(pw, []byte(keySalt), 1003, keyLength, sha1.New), nil
	default:
		return nil, errUnsupportedOS
	}
}

// keychainPassword reads the browser's safe-storage password from the macOS
// login keychain. Triggers a user prompt on first access.
func keychainPassword(browser string) ([]byte, error) {
	service := "Chrome Safe Storage"
	switch browser {
	case "chromium":
		service = "Chromium Safe Storage"
	case "brave":
		service = "Brave Safe Storage"
	case "edge":
		service = "Microsoft Edge Safe Storage"
	}
	out, err := exec.Command("security", "find-generic-password", "-w", "-s", service).Output()
	if err != nil {
		return nil, fmt.Errorf("keychain lookup for %q failed: %w", service, err)
	}
	return []byte(strings.TrimSpace(string(out))), nil
}

// decryptValue decodes a v10/v11 encrypted cookie value. Newer stores prepend
// a SHA-256 digest of the host key to the plaintext; it is stripped when it
// matches.
func decryptValue(encrypted, key []byte, hostKey string) (string, error) {
	if len(encrypted) < 3 {
		return "", errors.New("encrypted value too short")
	}
	version := string(encrypted[:3])
	if version != "v10" && version != "v11" {
		return "", fmt.Errorf("unknown cookie encryption version %q", version)
	}
	ciphertext := encrypted[3:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("ciphertext length %d not a block multiple", len(ciphertext))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	iv := bytes.Repeat([]byte{' '}, aes.BlockSize)
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	plain, err = stripPKCS7(plain)
	if err != nil {
		return "", err
	}
	if len(plain) >= sha256.Size {
		digest := sha256.Sum256([]byte(hostKey))
		if bytes.Equal(plain[:sha256.Size], digest[:]) {
			plain = plain[sha256.Size:]
		}
	}
	return string(plain), nil
}

func stripPKCS7(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.New("empty plaintext")
	}
	pad := int(b[len(b)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(b) {
		return nil, fmt.Errorf("bad padding byte %d", pad)
	}
	for _, c := range b[len(b)-pad:] {
		if int(c) != pad {
			return nil, errors.New("inconsistent padding")
		}
	}
	return b[:len(b)-pad], nil
}
