package community

import (
	"context"
	"errors"
	"testing"

	"github.com/BalmDeveloper/balm-health-app-sub001/internal/docstore"
)

var (
	u1 = &Actor{UserID: "u1", Alias: "member-one"}
	u2 = &Actor{UserID: "u2", Alias: "member-two"}
)

var errBoom = errors.New("boom")

// flakyStore injects failures into the remote store to exercise rollback.
type flakyStore struct {
	docstore.Store
	failList   bool
	failUpdate bool
	failCreate bool
}

func (f *flakyStore) List(ctx context.Context, collection, orderBy string, desc bool) ([]docstore.Document, error) {
	if f.failList {
		return nil, errBoom
	}
	return f.Store.List(ctx, collection, orderBy, desc)
}

func (f *flakyStore) Update(ctx context.Context, collection, id string, ops map[string]docstore.FieldOp) error {
	if f.failUpdate {
		return errBoom
	}
	return f.Store.Update(ctx, collection, id, ops)
}

func (f *flakyStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if f.failCreate {
		return "", errBoom
	}
	return f.Store.Create(ctx, collection, fields)
}

func newTestEngine() (*Engine, *flakyStore) {
	store := &flakyStore{Store: docstore.NewMemory()}
	return New(store, NewMemoryLedger()), store
}

func TestCreatePostValidation(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine()

	cases := []struct {
		category, title, content string
	}{
		{"PCOS", "", ""},
		{"PCOS", "  ", "  "},
		{"PCOS", "ok", " "},
		{"Gardening", "ok", "ok"},
	}
	for i, c := range cases {
		_, err := e.CreatePost(ctx, u1, c.category, c.title, c.content)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("case %d: expected ValidationError, got %v", i, err)
		}
	}

	if got := len(e.State().Posts); got != 0 {
		t.Fatalf("local posts after rejected creates = %d", got)
	}
	docs, _ := store.List(ctx, PostsCollection, "timestamp", true)
	if len(docs) != 0 {
		t.Fatalf("remote docs after rejected creates = %d", len(docs))
	}
}

func TestMutationsRequireAuth(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine()

	post, err := e.CreatePost(ctx, u1, "General", "hello", "world")
	if err != nil {
		t.Fatal(err)
	}

	checks := []struct {
		name string
		call func() error
	}{
		{"createPost", func() error { _, err := e.CreatePost(ctx, nil, "General", "t", "c"); return err }},
		{"updatePost", func() error { _, err := e.UpdatePost(ctx, nil, post.ID, "t", "c"); return err }},
		{"deletePost", func() error { return e.DeletePost(ctx, nil, post.ID) }},
		{"addComment", func() error { _, err := e.AddComment(ctx, nil, post.ID, "hi"); return err }},
		{"addReply", func() error { _, err := e.AddReply(ctx, nil, post.ID, "c", "hi"); return err }},
		{"vote", func() error { _, err := e.Vote(ctx, nil, ScopePost, post.ID, "", true); return err }},
	}
	for _, c := range checks {
		if err := c.call(); !errors.Is(err, ErrAuthRequired) {
			t.Fatalf("%s: expected ErrAuthRequired, got %v", c.name, err)
		}
	}
}

// The end-to-end walk from the product acceptance notes: post, comment,
// double vote, foreign delete.
func TestBoardScenario(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine()

	post, err := e.CreatePost(ctx, u1, "PCOS", "Test", "Hello")
	if err != nil {
		t.Fatal(err)
	}
	if post.Likes != 0 || post.Dislikes != 0 || post.Replies != 0 {
		t.Fatalf("fresh post counters: %+v", post)
	}
	if len(e.State().Posts) != 1 {
		t.Fatal("post not in local feed")
	}

	post, err = e.AddComment(ctx, u1, post.ID, "Hi there")
	if err != nil {
		t.Fatal(err)
	}
	if post.Replies != 1 || len(post.Comments) != 1 {
		t.Fatalf("after comment: replies=%d comments=%d", post.Replies, len(post.Comments))
	}
	if post.Comments[0].ID == "" {
		t.Fatal("comment id empty")
	}

	post, err = e.Vote(ctx, u2, ScopePost, post.ID, "", true)
	if err != nil {
		t.Fatal(err)
	}
	if post.Likes != 1 {
		t.Fatalf("likes after upvote = %d", post.Likes)
	}
	post, err = e.Vote(ctx, u2, ScopePost, post.ID, "", true)
	if err != nil {
		t.Fatal(err)
	}
	if post.Likes != 0 {
		t.Fatalf("likes after cancel = %d", post.Likes)
	}

	if err := e.DeletePost(ctx, u2, post.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("foreign delete: expected ErrNotOwner, got %v", err)
	}
	if len(e.State().Posts) != 1 {
		t.Fatal("foreign delete changed state")
	}
}

func TestVoteMutualExclusionAcrossDirections(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine()

	post, _ := e.CreatePost(ctx, u1, "TTC", "t", "c")

	post, err := e.Vote(ctx, u2, ScopePost, post.ID, "", true)
	if err != nil {
		t.Fatal(err)
	}
	post, err = e.Vote(ctx, u2, ScopePost, post.ID, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if post.Likes != 0 || post.Dislikes != 1 {
		t.Fatalf("after flip: likes=%d dislikes=%d", post.Likes, post.Dislikes)
	}
}

func TestVoteOnCommentAndReply(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine()

	post, _ := e.CreatePost(ctx, u1, "General", "t", "c")
	post, _ = e.AddComment(ctx, u1, post.ID, "first")
	commentID := post.Comments[0].ID
	post, _ = e.AddReply(ctx, u2, post.ID, commentID, "re")
	replyID := post.Comments[0].Replies[0].ID

	post, err := e.Vote(ctx, u2, ScopeComment, post.ID, commentID, true)
	if err != nil {
		t.Fatal(err)
	}
	if post.Comments[0].Likes != 1 {
		t.Fatalf("comment likes = %d", post.Comments[0].Likes)
	}

	post, err = e.Vote(ctx, u1, ScopeReply, post.ID, replyID, false)
	if err != nil {
		t.Fatal(err)
	}
	if post.Comments[0].Replies[0].Dislikes != 1 {
		t.Fatalf("reply dislikes = %d", post.Comments[0].Replies[0].Dislikes)
	}

	// The nested counters survive a reload from the store.
	posts, err := e.LoadPosts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if posts[0].Comments[0].Likes != 1 || posts[0].Comments[0].Replies[0].Dislikes != 1 {
		t.Fatalf("reloaded counters: %+v", posts[0].Comments[0])
	}
}

func TestReplyCounterConsistency(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine()

	check := func(p Post, step string) {
		t.Helper()
		if p.Replies != p.EngagementCount() {
			t.Fatalf("%s: replies=%d engagement=%d", step, p.Replies, p.EngagementCount())
		}
	}

	post, _ := e.CreatePost(ctx, u1, "Women's Health", "t", "c")
	post, _ = e.AddComment(ctx, u1, post.ID, "one")
	check(post, "comment 1")
	post, _ = e.AddComment(ctx, u2, post.ID, "two")
	check(post, "comment 2")

	c1 := post.Comments[0].ID
	post, _ = e.AddReply(ctx, u2, post.ID, c1, "re a")
	check(post, "reply 1")
	post, _ = e.AddReply(ctx, u1, post.ID, c1, "re b")
	check(post, "reply 2")
	if post.Replies != 4 {
		t.Fatalf("replies = %d, want 4", post.Replies)
	}

	rb := post.Comments[0].Replies[1].ID
	post, err := e.DeleteReply(ctx, u1, post.ID, rb)
	if err != nil {
		t.Fatal(err)
	}
	check(post, "delete reply")

	// Deleting a comment takes its remaining replies with it.
	post, err = e.DeleteComment(ctx, u1, post.ID, c1)
	if err != nil {
		t.Fatal(err)
	}
	check(post, "delete comment")
	if post.Replies != 1 || len(post.Comments) != 1 {
		t.Fatalf("after deletes: replies=%d comments=%d", post.Replies, len(post.Comments))
	}
}

func TestOwnershipEnforcement(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine()

	post, _ := e.CreatePost(ctx, u1, "Men's Health", "t", "c")
	post, _ = e.AddComment(ctx, u1, post.ID, "mine")
	commentID := post.Comments[0].ID

	before := e.State()

	if _, err := e.UpdatePost(ctx, u2, post.ID, "x", "y"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("updatePost: %v", err)
	}
	if _, err := e.EditComment(ctx, u2, post.ID, commentID, "x"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("editComment: %v", err)
	}
	if _, err := e.DeleteComment(ctx, u2, post.ID, commentID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("deleteComment: %v", err)
	}

	after := e.State()
	if len(after.Posts) != len(before.Posts) ||
		after.Posts[0].Comments[0].Content != before.Posts[0].Comments[0].Content {
		t.Fatal("rejected mutation changed state")
	}
}

func TestEditStampsEditedAt(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine()

	post, _ := e.CreatePost(ctx, u1, "General", "t", "c")
	post, _ = e.AddComment(ctx, u1, post.ID, "original")
	commentID := post.Comments[0].ID

	post, err := e.EditComment(ctx, u1, post.ID, commentID, "edited")
	if err != nil {
		t.Fatal(err)
	}
	if post.Comments[0].Content != "edited" || post.Comments[0].EditedAt == nil {
		t.Fatalf("edit not applied: %+v", post.Comments[0])
	}

	// Edit survives the store round trip.
	posts, _ := e.LoadPosts(ctx)
	if posts[0].Comments[0].Content != "edited" || posts[0].Comments[0].EditedAt == nil {
		t.Fatalf("reload lost edit: %+v", posts[0].Comments[0])
	}
}

func TestRollbackOnRemoteWriteFailure(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine()

	post, _ := e.CreatePost(ctx, u1, "General", "t", "c")

	store.failUpdate = true
	_, err := e.AddComment(ctx, u1, post.ID, "doomed")
	var rf *RemoteFailure
	if !errors.As(err, &rf) || !rf.Write {
		t.Fatalf("expected write RemoteFailure, got %v", err)
	}

	got, _ := e.GetPost(post.ID)
	if len(got.Comments) != 0 || got.Replies != 0 {
		t.Fatalf("optimistic comment not rolled back: %+v", got)
	}

	// The vote ledger rolls back with the state: the failed upvote must not
	// count as "already voted".
	if _, err := e.Vote(ctx, u2, ScopePost, post.ID, "", true); err == nil {
		t.Fatal("expected vote failure")
	}
	got, _ = e.GetPost(post.ID)
	if got.Likes != 0 {
		t.Fatalf("failed vote left likes = %d", got.Likes)
	}

	store.failUpdate = false
	got, err = e.Vote(ctx, u2, ScopePost, post.ID, "", true)
	if err != nil {
		t.Fatal(err)
	}
	if got.Likes != 1 {
		t.Fatalf("retried vote likes = %d, want 1", got.Likes)
	}
}

func TestCreatePostFailureLeavesNoLocalState(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine()

	store.failCreate = true
	_, err := e.CreatePost(ctx, u1, "General", "t", "c")
	var rf *RemoteFailure
	if !errors.As(err, &rf) || !rf.Write {
		t.Fatalf("expected write RemoteFailure, got %v", err)
	}
	if len(e.State().Posts) != 0 {
		t.Fatal("failed create left a local post")
	}
}

func TestLoadPostsFailureClearsFeed(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine()

	if _, err := e.CreatePost(ctx, u1, "General", "t", "c"); err != nil {
		t.Fatal(err)
	}

	store.failList = true
	posts, err := e.LoadPosts(ctx)
	var rf *RemoteFailure
	if !errors.As(err, &rf) || rf.Write {
		t.Fatalf("expected read RemoteFailure, got %v", err)
	}
	if len(posts) != 0 || len(e.State().Posts) != 0 {
		t.Fatal("feed not cleared on read failure")
	}
}

func TestLoadPostsOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine()

	for _, title := range []string{"oldest", "middle", "newest"} {
		if _, err := e.CreatePost(ctx, u1, "General", title, "c"); err != nil {
			t.Fatal(err)
		}
	}

	posts, err := e.LoadPosts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 3 || posts[0].Title != "newest" || posts[2].Title != "oldest" {
		t.Fatalf("order: %v, %v, %v", posts[0].Title, posts[1].Title, posts[2].Title)
	}
}
