package deliverystatus

import "testing"

func TestNextChain(t *testing.T) {
	want := []string{"requested", "acknowledged", "in-progress", "on-the-way", "delivered"}

	s := &Statuses.Requested
	for i, code := range want {
		if s == nil {
			t.Fatalf("chain ended early at index %d", i)
		}
		if s.Code() != code {
			t.Fatalf("chain[%d] = %s, want %s", i, s.Code(), code)
		}
		s = s.Next()
	}
	if s != nil {
		t.Errorf("Next() after delivered = %v, want nil", s)
	}
}

func TestTerminal(t *testing.T) {
	if Statuses.OnTheWay.Terminal() {
		t.Error("on-the-way reported terminal")
	}
	if !Statuses.Delivered.Terminal() {
		t.Error("delivered not reported terminal")
	}
}

func TestByName(t *testing.T) {
	if got := ByName("in-progress"); got == nil || got.Code() != "in-progress" {
		t.Errorf("ByName(in-progress) = %v", got)
	}
	if got := ByName("unknown"); got != nil {
		t.Errorf("ByName(unknown) = %v, want nil", got)
	}
}

func TestLabel(t *testing.T) {
	if got := Statuses.OnTheWay.Label(); got != "On The Way" {
		t.Errorf("Label() = %q, want %q", got, "On The Way")
	}
}
