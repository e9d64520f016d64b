package fingerprint

import (
	"strings"
	"testing"
)

func TestTextDeterministic(t *testing.T) {
	inputs := []string{"", "hello", "release notes", strings.Repeat("x", 4096)}
	for _, in := range inputs {
		a := Text(in)
		b := Text(in)
		if a != b {
			t.Errorf("Text(%q) not deterministic: %s vs %s", in, a, b)
		}
		if len(a) != Size*2 {
			t.Errorf("Text(%q) hex length = %d, want %d", in, len(a), Size*2)
		}
		if a != Digest(strings.ToLower(string(a))) {
			t.Errorf("Text(%q) = %s, want lowercase hex", in, a)
		}
	}
}

func TestTextDistinct(t *testing.T) {
	if Text("alpha") == Text("beta") {
		t.Error("distinct inputs produced identical digests")
	}
	// Empty text still hashes to a present digest, distinct from absent.
	if Text("").IsZero() {
		t.Error("Text(\"\") must produce a present digest")
	}
}

func TestIDSetOrderAndDuplicateInsensitive(t *testing.T) {
	a := IDSet([]int64{3, 1, 2})
	b := IDSet([]int64{1, 2, 2, 3, 1})
	if a != b {
		t.Errorf("IDSet([3,1,2]) = %s, IDSet([1,2,2,3,1]) = %s, want equal", a, b)
	}
	if a == IDSet([]int64{1, 2}) {
		t.Error("different sets produced identical digests")
	}
	if IDSet(nil) == IDSet([]int64{0}) {
		t.Error("empty set and {0} must differ")
	}
}

func TestIDSetNegativeIDs(t *testing.T) {
	a := IDSet([]int64{-5, 7})
	b := IDSet([]int64{7, -5})
	if a != b {
		t.Errorf("IDSet with negative ids not order-insensitive: %s vs %s", a, b)
	}
}

func TestEqual(t *testing.T) {
	d1 := Text("one")
	d2 := Text("two")
	tests := []struct {
		name string
		a, b Digest
		want bool
	}{
		{"same present", d1, d1, true},
		{"different present", d1, d2, false},
		{"both absent", "", "", true},
		{"absent vs present", "", d1, false},
		{"present vs absent", d1, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
