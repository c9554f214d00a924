package community

import "sync"

// Scope separates the three vote namespaces; the same uuid could in theory
// appear as both a comment and a reply id.
type Scope string

const (
	ScopePost    Scope = "post"
	ScopeComment Scope = "comment"
	ScopeReply   Scope = "reply"
)

func ParseScope(s string) (Scope, bool) {
	switch Scope(s) {
	case ScopePost, ScopeComment, ScopeReply:
		return Scope(s), true
	}
	return "", false
}

// Ledger records which entities an actor has voted on. Implementations hold
// two disjoint sets per scope; the engine keeps them disjoint by always
// writing both flags together.
type Ledger interface {
	Get(actorID string, scope Scope, id string) (liked, disliked bool, err error)
	Set(actorID string, scope Scope, id string, liked, disliked bool) error
}

// voteOutcome is what a single vote toggle does: the counter deltas to apply
// everywhere, and the membership the ledger ends up with.
type voteOutcome struct {
	likeDelta    int64
	dislikeDelta int64
	liked        bool
	disliked     bool
}

// resolveVote implements the toggle algorithm: voting the same direction
// twice cancels, voting the opposite direction flips. It guarantees at most
// one of liked/disliked afterwards.
func resolveVote(liked, disliked, up bool) voteOutcome {
	var out voteOutcome
	if up {
		if liked {
			out.likeDelta = -1
			return out
		}
		out.liked = true
		out.likeDelta = 1
		if disliked {
			out.dislikeDelta = -1
		}
		return out
	}
	if disliked {
		out.dislikeDelta = -1
		return out
	}
	out.disliked = true
	out.dislikeDelta = 1
	if liked {
		out.likeDelta = -1
	}
	return out
}

// MemoryLedger keeps vote state for the lifetime of the process only, which
// matches the original session-local behavior. Use RedisLedger for vote
// memory that survives restarts.
type MemoryLedger struct {
	mu       sync.Mutex
	liked    map[string]struct{}
	disliked map[string]struct{}
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		liked:    make(map[string]struct{}),
		disliked: make(map[string]struct{}),
	}
}

func ledgerKey(actorID string, scope Scope, id string) string {
	return actorID + "|" + string(scope) + "|" + id
}

func (l *MemoryLedger) Get(actorID string, scope Scope, id string) (bool, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := ledgerKey(actorID, scope, id)
	_, liked := l.liked[key]
	_, disliked := l.disliked[key]
	return liked, disliked, nil
}

func (l *MemoryLedger) Set(actorID string, scope Scope, id string, liked, disliked bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := ledgerKey(actorID, scope, id)
	if liked {
		l.liked[key] = struct{}{}
	} else {
		delete(l.liked, key)
	}
	if disliked {
		l.disliked[key] = struct{}{}
	} else {
		delete(l.disliked, key)
	}
	return nil
}
