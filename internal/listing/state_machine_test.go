package listing

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusPendingReview, true},
		{StatusDraft, StatusArchived, true},
		{StatusDraft, StatusApproved, false},
		{StatusPendingReview, StatusApproved, true},
		{StatusPendingReview, StatusRejected, true},
		{StatusPendingReview, StatusSold, false},
		{StatusRejected, StatusPendingReview, true},
		{StatusRejected, StatusArchived, true},
		{StatusApproved, StatusSold, true},
		{StatusApproved, StatusDraft, false},
		{StatusSold, StatusApproved, false},
		{StatusArchived, StatusDraft, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(StatusSold) || !IsTerminal(StatusArchived) {
		t.Fatalf("sold/archived should be terminal")
	}
	if IsTerminal(StatusDraft) || IsTerminal(StatusApproved) {
		t.Fatalf("draft/approved are not terminal")
	}
}
