package policy

import "testing"

func TestDecideExactGrant(t *testing.T) {
	got := Decide([]string{"peek.use"}, NodeUse)
	if !got.Allowed {
		t.Fatalf("Allowed = false, want true")
	}
	if got.Matched != "peek.use" {
		t.Fatalf("Matched = %q, want %q", got.Matched, "peek.use")
	}
}

func TestDecideWildcards(t *testing.T) {
	if !Allows([]string{"peek.*"}, NodeExempt) {
		t.Fatalf("peek.* should grant %s", NodeExempt)
	}
	if !Allows([]string{"*"}, NodeUse) {
		t.Fatalf("* should grant %s", NodeUse)
	}
	if Allows([]string{"other.*"}, NodeUse) {
		t.Fatalf("other.* should not grant %s", NodeUse)
	}
}

func TestDecideRevocationWins(t *testing.T) {
	got := Decide([]string{"*", "-peek.exempt"}, NodeExempt)
	if got.Allowed {
		t.Fatalf("Allowed = true, want false for revoked node")
	}
	if got.Matched != "-peek.exempt" {
		t.Fatalf("Matched = %q, want %q", got.Matched, "-peek.exempt")
	}
	if !Allows([]string{"*", "-peek.exempt"}, NodeUse) {
		t.Fatalf("revocation of exempt should not affect %s", NodeUse)
	}
}

func TestDecideEmpty(t *testing.T) {
	if Allows(nil, NodeUse) {
		t.Fatalf("nil grants should deny")
	}
	if Allows([]string{"peek.use"}, "  ") {
		t.Fatalf("blank node should deny")
	}
}
