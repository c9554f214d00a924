package community

import (
	"context"

	"github.com/google/uuid"

	"github.com/BalmDeveloper/balm-health-app-sub001/internal/docstore"
	"github.com/BalmDeveloper/balm-health-app-sub001/internal/log"
)

// Comments and replies have no documents of their own; every mutation here
// rewrites the parent post's whole comments array in a single field
// replacement, so other readers never observe a partial state.

// AddComment appends a comment to the post and bumps the flat engagement
// counter.
func (e *Engine) AddComment(ctx context.Context, actor *Actor, postID, text string) (Post, error) {
	if err := requireActor(actor); err != nil {
		return Post{}, err
	}
	text, err := validateText("comment", text, MaxCommentLen)
	if err != nil {
		return Post{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	post, ok := postIn(e.state, postID)
	if !ok {
		return Post{}, ErrNotFound
	}

	post.Comments = append(post.Comments, Comment{
		ID:        uuid.New().String(),
		Author:    authorName(actor),
		UserID:    actor.UserID,
		Content:   text,
		CreatedAt: e.now().UTC(),
		Replies:   []Reply{},
	})
	post.Replies++

	return e.persistComments(ctx, "addComment", post, incOp(1))
}

// AddReply appends a reply under one of the post's comments.
func (e *Engine) AddReply(ctx context.Context, actor *Actor, postID, commentID, text string) (Post, error) {
	if err := requireActor(actor); err != nil {
		return Post{}, err
	}
	text, err := validateText("reply", text, MaxReplyLen)
	if err != nil {
		return Post{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	post, ok := postIn(e.state, postID)
	if !ok {
		return Post{}, ErrNotFound
	}
	i, ok := findComment(post, commentID)
	if !ok {
		return Post{}, ErrNotFound
	}

	post.Comments[i].Replies = append(post.Comments[i].Replies, Reply{
		ID:        uuid.New().String(),
		Author:    authorName(actor),
		UserID:    actor.UserID,
		Content:   text,
		CreatedAt: e.now().UTC(),
	})
	post.Replies++

	return e.persistComments(ctx, "addReply", post, incOp(1))
}

// EditComment replaces the comment text and stamps the edit time. Owner
// only; siblings keep their positions.
func (e *Engine) EditComment(ctx context.Context, actor *Actor, postID, commentID, text string) (Post, error) {
	if err := requireActor(actor); err != nil {
		return Post{}, err
	}
	text, err := validateText("comment", text, MaxCommentLen)
	if err != nil {
		return Post{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	post, ok := postIn(e.state, postID)
	if !ok {
		return Post{}, ErrNotFound
	}
	i, ok := findComment(post, commentID)
	if !ok {
		return Post{}, ErrNotFound
	}
	if post.Comments[i].UserID != actor.UserID {
		return Post{}, ErrNotOwner
	}

	edited := e.now().UTC()
	post.Comments[i].Content = text
	post.Comments[i].EditedAt = &edited

	return e.persistComments(ctx, "editComment", post, nil)
}

// EditReply is EditComment one level down.
func (e *Engine) EditReply(ctx context.Context, actor *Actor, postID, replyID, text string) (Post, error) {
	if err := requireActor(actor); err != nil {
		return Post{}, err
	}
	text, err := validateText("reply", text, MaxReplyLen)
	if err != nil {
		return Post{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	post, ok := postIn(e.state, postID)
	if !ok {
		return Post{}, ErrNotFound
	}
	ci, ri, ok := findReply(post, replyID)
	if !ok {
		return Post{}, ErrNotFound
	}
	if post.Comments[ci].Replies[ri].UserID != actor.UserID {
		return Post{}, ErrNotOwner
	}

	edited := e.now().UTC()
	post.Comments[ci].Replies[ri].Content = text
	post.Comments[ci].Replies[ri].EditedAt = &edited

	return e.persistComments(ctx, "editReply", post, nil)
}

// DeleteComment removes the comment and everything under it. The engagement
// counter drops by the comment plus its replies, so the counter invariant
// holds after any sequence of deletes.
func (e *Engine) DeleteComment(ctx context.Context, actor *Actor, postID, commentID string) (Post, error) {
	if err := requireActor(actor); err != nil {
		return Post{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	post, ok := postIn(e.state, postID)
	if !ok {
		return Post{}, ErrNotFound
	}
	i, ok := findComment(post, commentID)
	if !ok {
		return Post{}, ErrNotFound
	}
	if post.Comments[i].UserID != actor.UserID {
		return Post{}, ErrNotOwner
	}

	removed := int64(1 + len(post.Comments[i].Replies))
	post.Comments = append(post.Comments[:i], post.Comments[i+1:]...)
	post.Replies = floorZero(post.Replies - removed)

	return e.persistComments(ctx, "deleteComment", post, setOp(post.Replies))
}

// DeleteReply removes one reply from its comment.
func (e *Engine) DeleteReply(ctx context.Context, actor *Actor, postID, replyID string) (Post, error) {
	if err := requireActor(actor); err != nil {
		return Post{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	post, ok := postIn(e.state, postID)
	if !ok {
		return Post{}, ErrNotFound
	}
	ci, ri, ok := findReply(post, replyID)
	if !ok {
		return Post{}, ErrNotFound
	}
	if post.Comments[ci].Replies[ri].UserID != actor.UserID {
		return Post{}, ErrNotOwner
	}

	replies := post.Comments[ci].Replies
	post.Comments[ci].Replies = append(replies[:ri], replies[ri+1:]...)
	post.Replies = floorZero(post.Replies - 1)

	return e.persistComments(ctx, "deleteReply", post, setOp(post.Replies))
}

// persistComments applies the mutated post optimistically, then writes the
// full comments array (and the counter op, when there is one) as a single
// remote update. Rolls local state back on failure. Callers hold e.mu.
func (e *Engine) persistComments(ctx context.Context, op string, post Post, counterOp *docstore.FieldOp) (Post, error) {
	prev := e.state
	e.state = withPost(e.state, post)

	ops := map[string]docstore.FieldOp{
		"comments": docstore.Set(encodeComments(post.Comments)),
	}
	if counterOp != nil {
		ops["replies"] = *counterOp
	}

	if err := e.store.Update(ctx, PostsCollection, post.ID, ops); err != nil {
		log.Warn.Printf("%s: %v", op, err)
		e.state = prev
		return Post{}, writeFailure(op, err)
	}
	return post, nil
}

func incOp(n int64) *docstore.FieldOp {
	op := docstore.Increment(n)
	return &op
}

func setOp(v any) *docstore.FieldOp {
	op := docstore.Set(v)
	return &op
}
