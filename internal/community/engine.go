package community

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/BalmDeveloper/balm-health-app-sub001/internal/docstore"
	"github.com/BalmDeveloper/balm-health-app-sub001/internal/log"
)

// Engine is the community interaction core: the local post cache, the
// comment/reply tree and the vote ledger, kept in sync with the remote
// document store.
//
// Every mutating operation runs the same pipeline: auth gate, validation,
// ownership check, optimistic local apply, remote persist. When the remote
// write fails the local state is rolled back to its pre-mutation snapshot
// and the caller gets a RemoteFailure, so local and remote never diverge
// silently.
//
// The mutex serializes whole operations, remote call included. The original
// ran on a single-threaded UI loop; serializing here reproduces that and
// keeps snapshot/rollback pairs from interleaving.
type Engine struct {
	mu     sync.Mutex
	store  docstore.Store
	ledger Ledger
	state  State
	now    func() time.Time
}

func New(store docstore.Store, ledger Ledger) *Engine {
	return &Engine{store: store, ledger: ledger, now: time.Now}
}

// State returns a detached copy of the local state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneState(e.state)
}

func requireActor(actor *Actor) error {
	if actor == nil || actor.UserID == "" {
		return ErrAuthRequired
	}
	return nil
}

func validateText(field, text string, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", &ValidationError{Field: field, Reason: "must not be empty"}
	}
	if len([]rune(trimmed)) > maxLen {
		return "", &ValidationError{Field: field, Reason: "too long"}
	}
	return trimmed, nil
}

func authorName(actor *Actor) string {
	if actor.Alias != "" {
		return actor.Alias
	}
	return NewAlias()
}

// LoadPosts fetches the whole board ordered newest first and replaces the
// local feed. On a read failure the feed is cleared and the failure is
// returned tagged, instead of being swallowed.
func (e *Engine) LoadPosts(ctx context.Context) ([]Post, error) {
	docs, err := e.store.List(ctx, PostsCollection, "timestamp", true)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		log.Warn.Printf("loadPosts: %v", err)
		e.state = withPosts(e.state, nil)
		return nil, readFailure("loadPosts", err)
	}

	posts := make([]Post, 0, len(docs))
	for _, d := range docs {
		posts = append(posts, postFromFields(d.ID, d.Fields))
	}
	e.state = withPosts(e.state, posts)
	return filterByCategory(e.state, "All"), nil
}

// FilterByCategory is a local projection; it never touches the store and
// never requires auth.
func (e *Engine) FilterByCategory(category string) []Post {
	e.mu.Lock()
	defer e.mu.Unlock()
	return filterByCategory(e.state, category)
}

// SelectPost marks a post as the detail view and returns its copy.
func (e *Engine) SelectPost(id string) (Post, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next, ok := withSelected(e.state, id)
	if !ok {
		return Post{}, ErrNotFound
	}
	e.state = next
	return clonePost(*e.state.Selected), nil
}

// GetPost returns a copy of a post from the local feed.
func (e *Engine) GetPost(id string) (Post, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := postIn(e.state, id)
	if !ok {
		return Post{}, ErrNotFound
	}
	return p, nil
}

// CreatePost writes the new post remotely first (the store assigns the id),
// then prepends it to the local feed.
func (e *Engine) CreatePost(ctx context.Context, actor *Actor, category, title, content string) (Post, error) {
	if err := requireActor(actor); err != nil {
		return Post{}, err
	}
	cat, ok := ParseCategory(category)
	if !ok {
		return Post{}, &ValidationError{Field: "category", Reason: "unknown category"}
	}
	title, err := validateText("title", title, MaxTitleLen)
	if err != nil {
		return Post{}, err
	}
	content, err = validateText("content", content, MaxPostContentLen)
	if err != nil {
		return Post{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	post := Post{
		Category:  cat,
		Title:     title,
		Content:   content,
		Author:    authorName(actor),
		UserID:    actor.UserID,
		CreatedAt: e.now().UTC(),
		Comments:  []Comment{},
	}
	id, err := e.store.Create(ctx, PostsCollection, post.fields())
	if err != nil {
		log.Warn.Printf("createPost: %v", err)
		return Post{}, writeFailure("createPost", err)
	}
	post.ID = id
	e.state = withInsertedPost(e.state, post)
	return post, nil
}

// UpdatePost edits title and content of the actor's own post.
func (e *Engine) UpdatePost(ctx context.Context, actor *Actor, postID, title, content string) (Post, error) {
	if err := requireActor(actor); err != nil {
		return Post{}, err
	}
	title, err := validateText("title", title, MaxTitleLen)
	if err != nil {
		return Post{}, err
	}
	content, err = validateText("content", content, MaxPostContentLen)
	if err != nil {
		return Post{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	post, ok := postIn(e.state, postID)
	if !ok {
		return Post{}, ErrNotFound
	}
	if post.UserID != actor.UserID {
		return Post{}, ErrNotOwner
	}

	edited := e.now().UTC()
	post.Title = title
	post.Content = content
	post.EditedAt = &edited

	prev := e.state
	e.state = withPost(e.state, post)

	err = e.store.Update(ctx, PostsCollection, postID, map[string]docstore.FieldOp{
		"title":    docstore.Set(title),
		"content":  docstore.Set(content),
		"editedAt": docstore.Set(encodeTime(edited)),
	})
	if err != nil {
		log.Warn.Printf("updatePost: %v", err)
		e.state = prev
		return Post{}, writeFailure("updatePost", err)
	}
	return post, nil
}

// DeletePost removes the actor's own post. Irreversible once the remote
// delete succeeds.
func (e *Engine) DeletePost(ctx context.Context, actor *Actor, postID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	post, ok := postIn(e.state, postID)
	if !ok {
		return ErrNotFound
	}
	if post.UserID != actor.UserID {
		return ErrNotOwner
	}

	prev := e.state
	e.state = withoutPost(e.state, postID)

	if err := e.store.Delete(ctx, PostsCollection, postID); err != nil {
		log.Warn.Printf("deletePost: %v", err)
		e.state = prev
		return writeFailure("deletePost", err)
	}
	return nil
}

// Vote toggles the actor's up/down vote on a post, comment or reply.
// targetID is ignored for the post scope. Post counters persist via atomic
// increments; nested counters ride along with a comments-array rewrite,
// since the document contract cannot increment inside an array.
func (e *Engine) Vote(ctx context.Context, actor *Actor, scope Scope, postID, targetID string, up bool) (Post, error) {
	if err := requireActor(actor); err != nil {
		return Post{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	post, ok := postIn(e.state, postID)
	if !ok {
		return Post{}, ErrNotFound
	}

	entityID := postID
	if scope != ScopePost {
		entityID = targetID
	}

	liked, disliked, err := e.ledger.Get(actor.UserID, scope, entityID)
	if err != nil {
		log.Warn.Printf("vote ledger read: %v", err)
		return Post{}, readFailure("vote", err)
	}
	out := resolveVote(liked, disliked, up)

	switch scope {
	case ScopePost:
		post.Likes = floorZero(post.Likes + out.likeDelta)
		post.Dislikes = floorZero(post.Dislikes + out.dislikeDelta)
	case ScopeComment:
		i, ok := findComment(post, targetID)
		if !ok {
			return Post{}, ErrNotFound
		}
		post.Comments[i].Likes = floorZero(post.Comments[i].Likes + out.likeDelta)
		post.Comments[i].Dislikes = floorZero(post.Comments[i].Dislikes + out.dislikeDelta)
	case ScopeReply:
		ci, ri, ok := findReply(post, targetID)
		if !ok {
			return Post{}, ErrNotFound
		}
		r := &post.Comments[ci].Replies[ri]
		r.Likes = floorZero(r.Likes + out.likeDelta)
		r.Dislikes = floorZero(r.Dislikes + out.dislikeDelta)
	default:
		return Post{}, &ValidationError{Field: "scope", Reason: "unknown scope"}
	}

	prev := e.state
	e.state = withPost(e.state, post)

	if err := e.ledger.Set(actor.UserID, scope, entityID, out.liked, out.disliked); err != nil {
		log.Warn.Printf("vote ledger write: %v", err)
		e.state = prev
		return Post{}, writeFailure("vote", err)
	}

	var ops map[string]docstore.FieldOp
	if scope == ScopePost {
		ops = map[string]docstore.FieldOp{}
		if out.likeDelta != 0 {
			ops["likes"] = docstore.Increment(out.likeDelta)
		}
		if out.dislikeDelta != 0 {
			ops["dislikes"] = docstore.Increment(out.dislikeDelta)
		}
	} else {
		ops = map[string]docstore.FieldOp{
			"comments": docstore.Set(encodeComments(post.Comments)),
		}
	}

	if err := e.store.Update(ctx, PostsCollection, postID, ops); err != nil {
		log.Warn.Printf("vote: %v", err)
		e.state = prev
		// Put the ledger back too, or the next toggle would desync.
		if lerr := e.ledger.Set(actor.UserID, scope, entityID, liked, disliked); lerr != nil {
			log.Error.Printf("vote ledger rollback: %v", lerr)
		}
		return Post{}, writeFailure("vote", err)
	}
	return post, nil
}

func floorZero(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

func findComment(p Post, id string) (int, bool) {
	for i := range p.Comments {
		if p.Comments[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

func findReply(p Post, id string) (int, int, bool) {
	for ci := range p.Comments {
		for ri := range p.Comments[ci].Replies {
			if p.Comments[ci].Replies[ri].ID == id {
				return ci, ri, true
			}
		}
	}
	return 0, 0, false
}
