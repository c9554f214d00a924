package community

import "testing"

func TestResolveVoteToggle(t *testing.T) {
	cases := []struct {
		name            string
		liked, disliked bool
		up              bool
		wantLike        int64
		wantDislike     int64
		wantLiked       bool
		wantDisliked    bool
	}{
		{"fresh upvote", false, false, true, 1, 0, true, false},
		{"fresh downvote", false, false, false, 0, 1, false, true},
		{"upvote again cancels", true, false, true, -1, 0, false, false},
		{"downvote again cancels", false, true, false, 0, -1, false, false},
		{"upvote flips downvote", false, true, true, 1, -1, true, false},
		{"downvote flips upvote", true, false, false, -1, 1, false, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out := resolveVote(c.liked, c.disliked, c.up)
			if out.likeDelta != c.wantLike || out.dislikeDelta != c.wantDislike {
				t.Fatalf("deltas = (%d,%d), want (%d,%d)", out.likeDelta, out.dislikeDelta, c.wantLike, c.wantDislike)
			}
			if out.liked != c.wantLiked || out.disliked != c.wantDisliked {
				t.Fatalf("membership = (%v,%v), want (%v,%v)", out.liked, out.disliked, c.wantLiked, c.wantDisliked)
			}
		})
	}
}

// Mutual exclusion: whatever sequence of votes runs, at most one of
// liked/disliked holds after each step.
func TestResolveVoteMutualExclusion(t *testing.T) {
	sequences := [][]bool{
		{true, true, true},
		{true, false, true, false},
		{false, false, true},
		{true, true, false, false, true},
	}
	for _, seq := range sequences {
		liked, disliked := false, false
		for i, up := range seq {
			out := resolveVote(liked, disliked, up)
			liked, disliked = out.liked, out.disliked
			if liked && disliked {
				t.Fatalf("seq %v step %d: liked and disliked both set", seq, i)
			}
		}
	}
}

// Idempotent cancel: an even number of same-direction votes sums to zero.
func TestResolveVoteCancelSumsToZero(t *testing.T) {
	liked, disliked := false, false
	var total int64
	for i := 0; i < 4; i++ {
		out := resolveVote(liked, disliked, true)
		liked, disliked = out.liked, out.disliked
		total += out.likeDelta
	}
	if total != 0 {
		t.Fatalf("net like delta after 4 upvotes = %d, want 0", total)
	}
}

func TestMemoryLedger(t *testing.T) {
	l := NewMemoryLedger()

	liked, disliked, err := l.Get("u1", ScopePost, "p1")
	if err != nil || liked || disliked {
		t.Fatalf("fresh ledger: %v %v %v", liked, disliked, err)
	}

	if err := l.Set("u1", ScopePost, "p1", true, false); err != nil {
		t.Fatal(err)
	}
	liked, disliked, _ = l.Get("u1", ScopePost, "p1")
	if !liked || disliked {
		t.Fatalf("after like: %v %v", liked, disliked)
	}

	// Same id under another scope or actor stays untouched.
	if liked, _, _ = l.Get("u1", ScopeComment, "p1"); liked {
		t.Fatal("scope leaked")
	}
	if liked, _, _ = l.Get("u2", ScopePost, "p1"); liked {
		t.Fatal("actor leaked")
	}

	if err := l.Set("u1", ScopePost, "p1", false, true); err != nil {
		t.Fatal(err)
	}
	liked, disliked, _ = l.Get("u1", ScopePost, "p1")
	if liked || !disliked {
		t.Fatalf("after flip: %v %v", liked, disliked)
	}
}
