package object

import "testing"

func TestHashPayloadDeterminism(t *testing.T) {
	data := []byte("hello world")
	h1 := HashPayload(KindFile, data)
	h2 := HashPayload(KindFile, data)
	if h1 != h2 {
		t.Errorf("HashPayload not deterministic: %q != %q", h1, h2)
	}
	if len(h1) != IDHexLen {
		t.Errorf("ID length: got %d, want %d", len(h1), IDHexLen)
	}
	if !h1.Valid() {
		t.Errorf("HashPayload produced invalid id %q", h1)
	}
}

func TestHashPayloadKindEnvelope(t *testing.T) {
	data := []byte("hello")
	if HashPayload(KindFile, data) == HashPayload(KindTree, data) {
		t.Error("Different kinds should produce different ids")
	}
	if HashPayload(KindFile, []byte("aaa")) == HashPayload(KindFile, []byte("bbb")) {
		t.Error("Different payloads produced same id")
	}
}

func TestIDValid(t *testing.T) {
	if (ID("abc")).Valid() {
		t.Error("short id should be invalid")
	}
	if (ID("zz" + HashPayload(KindFile, nil)[2:])).Valid() {
		t.Error("non-hex id should be invalid")
	}
}

func TestIsHexPrefix(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"ab12", true},
		{"", false},
		{"xyz", false},
		{"AB12", false}, // ids are lowercase
		{string(HashPayload(KindFile, nil)) + "0", false},
	}
	for _, tc := range cases {
		if got := IsHexPrefix(tc.in); got != tc.want {
			t.Errorf("IsHexPrefix(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewChangeIDUnique(t *testing.T) {
	seen := make(map[ChangeID]bool)
	for i := 0; i < 100; i++ {
		c := NewChangeID()
		if !ValidChangeID(string(c)) {
			t.Fatalf("NewChangeID produced invalid id %q", c)
		}
		if seen[c] {
			t.Fatalf("duplicate change id %q", c)
		}
		seen[c] = true
	}
}
