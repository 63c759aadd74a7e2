package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainChangeSet separates change-set hashes from any other hash the
// system may compute over the same bytes.
const DomainChangeSet = "annotie/changeset/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ChangeSetID computes the content-addressed identity of one transmitted
// change-set. The session and its sequence number are part of the identity,
// so two identical edits made at different times remain distinct while a
// retried send of the same change-set keeps its id.
func ChangeSetID(annotationID, session string, seq int64, cs ChangeSet) (string, error) {
	payload, err := MarshalCanonical(cs)
	if err != nil {
		return "", fmt.Errorf("ChangeSetID: failed to marshal: %w", err)
	}
	header, err := MarshalCanonical(map[string]any{
		"annotation_id": annotationID,
		"session":       session,
		"seq":           seq,
	})
	if err != nil {
		return "", fmt.Errorf("ChangeSetID: failed to marshal header: %w", err)
	}
	data := append(header, 0x00)
	data = append(data, payload...)
	return hashWithDomain(DomainChangeSet, data), nil
}

// MustChangeSetID is like ChangeSetID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustChangeSetID(annotationID, session string, seq int64, cs ChangeSet) string {
	id, err := ChangeSetID(annotationID, session, seq, cs)
	if err != nil {
		panic(err)
	}
	return id
}
