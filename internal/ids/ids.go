// Package ids generates collision-resistant identifiers: a human-readable
// prefix per entity kind followed by a high-entropy random hex suffix.
package ids

import (
	"crypto/rand"
	"encoding/hex"
)

// Entity prefixes.
const (
	Checkout     = "checkout_"
	Order        = "order_"
	Destination  = "dest_"
	Client       = "ucp_"
	ClientSecret = "ucp_secret_"
)

// New returns prefix followed by 32 hex characters (16 random bytes).
func New(prefix string) string {
	return prefix + Token(16)
}

// Token returns 2*nbytes hex characters from a CSPRNG.
func Token(nbytes int) string {
	buf := make([]byte, nbytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	return hex.EncodeToString(buf)
}
