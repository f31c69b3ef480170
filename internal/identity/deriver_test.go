package identity

import (
	"fmt"
	"regexp"
	"testing"
)

var anonIDShape = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestNewDeriver_MissingSalt(t *testing.T) {
	t.Parallel()

	_, err := NewDeriver("")
	if err != ErrMissingSalt {
		t.Fatalf("expected ErrMissingSalt, got %v", err)
	}
}

func TestDerive_Deterministic(t *testing.T) {
	t.Parallel()

	d, err := NewDeriver("test-salt")
	if err != nil {
		t.Fatalf("NewDeriver error: %v", err)
	}

	first := d.Derive("jane.doe@company.com")
	for i := 0; i < 100; i++ {
		if got := d.Derive("jane.doe@company.com"); got != first {
			t.Fatalf("derive not deterministic: got %q want %q", got, first)
		}
	}

	// A second deriver with the same salt stands in for a process restart.
	d2, _ := NewDeriver("test-salt")
	if got := d2.Derive("jane.doe@company.com"); got != first {
		t.Fatalf("derive differs across deriver instances: got %q want %q", got, first)
	}
}

func TestDerive_CaseInsensitive(t *testing.T) {
	t.Parallel()

	d, _ := NewDeriver("test-salt")
	if d.Derive("A@X.COM") != d.Derive("a@x.com") {
		t.Fatalf("mixed-case emails must derive the same id")
	}
	if d.Derive("Jane.Doe@Company.COM") != d.Derive("jane.doe@company.com") {
		t.Fatalf("mixed-case emails must derive the same id")
	}
}

func TestDerive_Format(t *testing.T) {
	t.Parallel()

	d, _ := NewDeriver("test-salt")
	cases := []string{"a@x.com", "very.long.address+tag@sub.example.co.kr", "유니코드@example.com"}
	for _, email := range cases {
		id := d.Derive(email)
		if len(id) != 36 {
			t.Errorf("Derive(%q) length = %d, want 36", email, len(id))
		}
		if !anonIDShape.MatchString(id) {
			t.Errorf("Derive(%q) = %q, does not match 8-4-4-4-12 hex shape", email, id)
		}
	}
}

func TestDerive_Distinct(t *testing.T) {
	t.Parallel()

	d, _ := NewDeriver("test-salt")
	seen := make(map[string]string, 5000)
	for i := 0; i < 5000; i++ {
		email := fmt.Sprintf("user%d@example.com", i)
		id := d.Derive(email)
		if prev, ok := seen[id]; ok {
			t.Fatalf("collision: %q and %q both derive %q", prev, email, id)
		}
		seen[id] = email
	}
}

func TestDerive_SaltChangesOutput(t *testing.T) {
	t.Parallel()

	d1, _ := NewDeriver("salt-one")
	d2, _ := NewDeriver("salt-two")
	if d1.Derive("a@x.com") == d2.Derive("a@x.com") {
		t.Fatalf("different salts must derive different ids")
	}
}

func TestWithdrawnEmailHash_FoldsCase(t *testing.T) {
	t.Parallel()

	if WithdrawnEmailHash("A@X.COM") != WithdrawnEmailHash("a@x.com") {
		t.Fatalf("withdrawn email hash must be case-insensitive")
	}
	if len(WithdrawnEmailHash("a@x.com")) != 64 {
		t.Fatalf("withdrawn email hash must be full sha256 hex")
	}
}
