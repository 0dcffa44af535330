package room

import (
	"crypto/rand"
	"log"
	"math/big"
	"strings"
)

// CodeLength is the number of characters in a room code.
const CodeLength = 6

const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewCode returns a random 6-character upper-case base-36 room code.
func NewCode() string {
	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		b.WriteByte(codeAlphabet[randomIndex(len(codeAlphabet))])
	}
	return b.String()
}

// NormalizeCode folds a client-supplied room code to canonical form. Codes
// are case-insensitive on the wire.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		// crypto/rand only fails if the OS entropy source is broken; there is
		// no sensible way to continue serving.
		log.Panic("failed to generate random index: ", err)
	}
	return int(n.Int64())
}
