package ledger

import (
	"testing"
	"time"

	"github.com/volatiletech/null/v8"
)

func TestSnapshot_Fingerprint(t *testing.T) {
	tstamp := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	build := func(keys ...string) Snapshot {
		s := make(Snapshot, len(keys))
		for _, key := range keys {
			switch key {
			case "attendance_id":
				s.SetInt(key, 42)
			case "student_name":
				s.SetString(key, "Jane Moyo")
			case "subject_code":
				s.SetString(key, "") // stored as null
			case "attendance_date":
				s.SetDate(key, tstamp)
			case "updated_at":
				s.SetTime(key, tstamp)
			case "timestamp":
				s.Set(key, tstamp.Unix())
			}
		}
		return s
	}
	keys := []string{"attendance_id", "student_name", "subject_code", "attendance_date", "updated_at", "timestamp"}
	reversed := []string{"timestamp", "updated_at", "attendance_date", "subject_code", "student_name", "attendance_id"}

	hash1, err := build(keys...).Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint() failed: %v", err)
	}
	hash2, err := build(reversed...).Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint() failed: %v", err)
	}

	if !hashRegex.MatchString(hash1) {
		t.Errorf("Fingerprint() = %q; want 64 lowercase hex chars", hash1)
	}
	if hash1 != hash2 {
		t.Errorf("insertion order changed the fingerprint: %q != %q", hash1, hash2)
	}

	// a single value change must produce a different digest
	tampered := build(keys...)
	tampered.SetString("student_name", "Jane Moyos")
	hash3, err := tampered.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint() failed: %v", err)
	}
	if hash3 == hash1 {
		t.Error("tampered snapshot fingerprinted identically")
	}
}

func TestSnapshot_Serialize(t *testing.T) {
	s := make(Snapshot)
	s.SetInt("b", 2)
	s.SetString("a", "x")
	s.SetString("c", "")
	s.SetNullInt("d", null.Int{})
	s.SetDecimal("e", null.Float64From(87.5))
	s.SetDate("f", time.Time{})

	got, err := s.Serialize()
	if err != nil {
		t.Fatalf("Serialize() failed: %v", err)
	}
	want := `{"a":"x","b":2,"c":null,"d":null,"e":"87.50","f":null}`
	if string(got) != want {
		t.Errorf("Serialize() = %s; want %s", got, want)
	}
}

func TestMatchHash(t *testing.T) {
	h := "a3f18e6c9d4b2a7e5f0c8d1b6a9e4f2c7d0b3a8e5f1c9d6b2a7e4f0c8d1b6a9e"
	tests := []struct {
		name             string
		current, claimed string
		want             bool
	}{
		{name: "match", current: h, claimed: h, want: true},
		{name: "mismatch", current: h, claimed: "b" + h[1:], want: false},
		{name: "length mismatch", current: h, claimed: h[:63], want: false},
		{name: "empty claim", current: h, claimed: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchHash(tt.current, tt.claimed); got != tt.want {
				t.Errorf("MatchHash() = %v; want %v", got, tt.want)
			}
		})
	}
}
