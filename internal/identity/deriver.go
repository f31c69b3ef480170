package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrMissingSalt indicates the HMAC salt was not configured. Without it the
// deriver would produce guessable ids, so startup must fail instead.
var ErrMissingSalt = errors.New("anon id salt is not configured")

// Deriver maps a verified email address to a stable pseudonymous id using
// HMAC-SHA256 with a server-held salt. All content tables reference the
// derived id, never the raw auth account id or the email itself.
type Deriver struct {
	salt []byte
}

func NewDeriver(salt string) (*Deriver, error) {
	if salt == "" {
		return nil, ErrMissingSalt
	}
	return &Deriver{salt: []byte(salt)}, nil
}

// Derive computes the anon id for an email. Emails are lowercased before
// hashing so the same person gets the same id regardless of how the auth
// provider cases the address. The digest's first 128 bits are formatted as
// 8-4-4-4-12 hex groups so the value fits UUID-shaped columns; it carries no
// UUID version or variant semantics.
func (d *Deriver) Derive(email string) string {
	mac := hmac.New(sha256.New, d.salt)
	mac.Write([]byte(strings.ToLower(email)))
	hx := hex.EncodeToString(mac.Sum(nil))
	return hx[0:8] + "-" + hx[8:12] + "-" + hx[12:16] + "-" + hx[16:20] + "-" + hx[20:32]
}

// WithdrawnEmailHash computes the one-way hash stored on a profile at
// withdrawal time to block re-registration with the same address.
func WithdrawnEmailHash(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(email)))
	return hex.EncodeToString(sum[:])
}
