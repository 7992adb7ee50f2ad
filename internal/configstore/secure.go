package configstore

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

const urlSafeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// secureString returns n random characters drawn from an URL-safe
// alphabet, used for usernames and the link-mode discovery token.
func secureString(n int) string {
	var b strings.Builder
	b.Grow(n)
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failing means the platform is broken
	}
	for _, c := range buf {
		b.WriteByte(urlSafeAlphabet[int(c)%len(urlSafeAlphabet)])
	}
	return b.String()
}

// secureHex returns n uppercase hex characters, used for clientkey.
func secureHex(n int) string {
	buf := make([]byte, (n+1)/2)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	s := hex.EncodeToString(buf)
	return strings.ToUpper(s[:n])
}
