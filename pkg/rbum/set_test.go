package rbum

import "testing"

func TestIncrementBase36(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"000001", "000002"},
		{"00000A", "00000B"},
		{"00000Z", "000010"},
		{"0000ZZ", "000100"},
	}
	for _, c := range cases {
		got, err := incrementBase36(c.in)
		if err != nil {
			t.Fatalf("incrementBase36(%q) error: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("incrementBase36(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIncrementBase36Overflow(t *testing.T) {
	if _, err := incrementBase36("ZZZZZZ"); err == nil {
		t.Error("expected overflow error when incrementing the max segment")
	}
}

func TestFirstSegmentLength(t *testing.T) {
	if len(firstSegment()) != sysCodeNodeLen {
		t.Errorf("firstSegment() length = %d, want %d", len(firstSegment()), sysCodeNodeLen)
	}
}
