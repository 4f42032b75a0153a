package ledger

import "golang.org/x/crypto/sha3"

// attestDomainSeparator binds a signature to travel-rule attestation so
// it cannot be replayed as any other kind of message.
const attestDomainSeparator = "@@$$TR_ATTEST$$@@"

// MetadataDigest is the message a recipient's compliance key signs over
// travel-rule metadata, and the message the ledger verifies before a
// transfer carrying that metadata may settle.
func MetadataDigest(metadata []byte) []byte {
	h := sha3.New256()
	h.Write(metadata)
	h.Write([]byte(attestDomainSeparator))
	return h.Sum(nil)
}
