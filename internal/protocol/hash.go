package protocol

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// Domain prefixes for content hashes. The version suffix leaves room for a
// future algorithm change without colliding with old digests.
const (
	DomainStateDigest       = "eventstate/state/v1"
	DomainApplierDefinition = "eventstate/applier/v1"
	DomainDocument          = "eventstate/document/v1"
)

// NewDomainHash returns a SHA-256 hash already primed with the domain and
// its 0x00 separator. Callers stream data into it and hex-encode Sum(nil).
func NewDomainHash(domain string) hash.Hash {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	return h
}

// HashWithDomain computes SHA256(domain + 0x00 + data) as lowercase hex.
func HashWithDomain(domain string, data []byte) string {
	h := NewDomainHash(domain)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DocumentHash returns the content hash of a variable document.
func DocumentHash(d Document) (string, error) {
	canonical, err := MarshalCanonical(d)
	if err != nil {
		return "", err
	}
	return HashWithDomain(DomainDocument, canonical), nil
}
