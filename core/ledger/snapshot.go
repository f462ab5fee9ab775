package ledger

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

// HashLen is the length of a hex-encoded SHA-256 fingerprint.
const HashLen = 64

// Snapshot is the canonical, flat representation of a record used as
// hashing input. Values are restricted to strings, numbers and nulls so
// serialization is total and deterministic: encoding/json writes map keys
// in sorted order, which makes the serialized form independent of the
// order fields were added in.
type Snapshot map[string]interface{}

func (s Snapshot) Set(key string, val interface{}) { s[key] = val }

func (s Snapshot) SetInt(key string, val int) { s[key] = val }

// SetString stores val, or null when absent.
func (s Snapshot) SetString(key, val string) {
	if val == "" {
		s[key] = nil
		return
	}
	s[key] = val
}

func (s Snapshot) SetNullInt(key string, val null.Int) {
	if !val.Valid {
		s[key] = nil
		return
	}
	s[key] = val.Int
}

// SetDecimal stores a grade-style decimal with two fractional digits,
// or null when absent.
func (s Snapshot) SetDecimal(key string, val null.Float64) {
	if !val.Valid {
		s[key] = nil
		return
	}
	s[key] = strconv.FormatFloat(val.Float64, 'f', 2, 64)
}

// SetDate stores a calendar date (Y-m-d), or null when zero.
func (s Snapshot) SetDate(key string, val time.Time) {
	if val.IsZero() {
		s[key] = nil
		return
	}
	s[key] = val.Format("2006-01-02")
}

// SetTime stores an ISO-8601 timestamp, or null when zero.
func (s Snapshot) SetTime(key string, val time.Time) {
	if val.IsZero() {
		s[key] = nil
		return
	}
	s[key] = val.UTC().Format(time.RFC3339)
}

// Serialize returns the canonical byte form of the snapshot: JSON with
// lexicographically sorted keys at every level.
func (s Snapshot) Serialize() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "serializing snapshot")
	}
	return b, nil
}

// Fingerprint computes the SHA-256 digest of the canonical serialization;
// lowercase hex, 64 characters. Two snapshots holding the same key/value
// pairs always fingerprint identically, however they were built.
func (s Snapshot) Fingerprint() (string, error) {
	b, err := s.Serialize()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// MatchHash compares two fingerprints byte-for-byte in constant time;
// this guards tamper detection, so no timing leakage.
func MatchHash(current, claimed string) bool {
	return subtle.ConstantTimeCompare([]byte(current), []byte(claimed)) == 1
}
