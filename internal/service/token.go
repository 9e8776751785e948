package service

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// verificationTokenBytes gives 256 bits of entropy.
const verificationTokenBytes = 32

// VerificationTokenIssuer creates opaque, single-use email verification tokens.
type VerificationTokenIssuer struct {
	ttl time.Duration
	now func() time.Time
}

func NewVerificationTokenIssuer(ttl time.Duration) *VerificationTokenIssuer {
	return &VerificationTokenIssuer{ttl: ttl, now: time.Now}
}

// Issue returns a random hex token and the instant after which it is unusable.
func (i *VerificationTokenIssuer) Issue() (string, time.Time, error) {
	bytes := make([]byte, verificationTokenBytes)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", time.Time{}, err
	}
	return hex.EncodeToString(bytes), i.now().UTC().Add(i.ttl), nil
}

func (i *VerificationTokenIssuer) TTL() time.Duration {
	return i.ttl
}
