package community

import (
	"time"

	"github.com/google/uuid"
)

// PostsCollection is the remote collection holding one document per post,
// comments and replies embedded.
const PostsCollection = "community_posts"

type Category string

const (
	CategoryGeneral      Category = "General"
	CategoryPCOS         Category = "PCOS"
	CategoryTTC          Category = "TTC"
	CategoryWomensHealth Category = "Women's Health"
	CategoryMensHealth   Category = "Men's Health"
)

var Categories = []Category{
	CategoryGeneral,
	CategoryPCOS,
	CategoryTTC,
	CategoryWomensHealth,
	CategoryMensHealth,
}

// ParseCategory accepts the board categories plus "All", which is only
// meaningful for filtering.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

const (
	MaxTitleLen       = 100
	MaxPostContentLen = 500
	MaxCommentLen     = 300
	MaxReplyLen       = 200
)

// Actor is the authenticated user performing an operation. Alias is the
// anonymized display name shown on posts; when empty one is generated.
type Actor struct {
	UserID string
	Alias  string
}

// NewAlias builds an anonymized display name for actors that never picked
// one.
func NewAlias() string {
	return "member-" + uuid.New().String()[:8]
}

type Reply struct {
	ID        string     `json:"id"`
	Author    string     `json:"author"`
	UserID    string     `json:"userId"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"timestamp"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
	Likes     int64      `json:"likes"`
	Dislikes  int64      `json:"dislikes"`
}

type Comment struct {
	ID        string     `json:"id"`
	Author    string     `json:"author"`
	UserID    string     `json:"userId"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"timestamp"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
	Likes     int64      `json:"likes"`
	Dislikes  int64      `json:"dislikes"`
	Replies   []Reply    `json:"replies"`
}

type Post struct {
	ID        string     `json:"id"`
	Category  Category   `json:"category"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Author    string     `json:"author"`
	UserID    string     `json:"userId"`
	CreatedAt time.Time  `json:"timestamp"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
	Likes     int64      `json:"likes"`
	Dislikes  int64      `json:"dislikes"`
	// Replies is the flat engagement count: comments plus every nested
	// reply, not direct children only.
	Replies  int64     `json:"replies"`
	Comments []Comment `json:"comments"`
}

// EngagementCount recomputes the flat counter from the tree; Replies must
// always equal it.
func (p Post) EngagementCount() int64 {
	n := int64(len(p.Comments))
	for _, c := range p.Comments {
		n += int64(len(c.Replies))
	}
	return n
}

func clonePost(p Post) Post {
	out := p
	out.Comments = make([]Comment, len(p.Comments))
	for i, c := range p.Comments {
		cc := c
		cc.Replies = append([]Reply(nil), c.Replies...)
		out.Comments[i] = cc
	}
	return out
}

// --- document encoding ---
//
// Timestamps travel as fixed-width RFC3339 strings so every backend stores
// them the same way and lexicographic order equals chronological order.
// (RFC3339Nano trims trailing zeros, which breaks string ordering for
// whole-second values.)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func encodeTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func (p Post) fields() map[string]any {
	f := map[string]any{
		"category":  string(p.Category),
		"title":     p.Title,
		"content":   p.Content,
		"author":    p.Author,
		"userId":    p.UserID,
		"timestamp": encodeTime(p.CreatedAt),
		"likes":     p.Likes,
		"dislikes":  p.Dislikes,
		"replies":   p.Replies,
		"comments":  encodeComments(p.Comments),
	}
	if p.EditedAt != nil {
		f["editedAt"] = encodeTime(*p.EditedAt)
	}
	return f
}

func encodeComments(comments []Comment) []any {
	out := make([]any, len(comments))
	for i, c := range comments {
		m := map[string]any{
			"id":        c.ID,
			"author":    c.Author,
			"userId":    c.UserID,
			"content":   c.Content,
			"timestamp": encodeTime(c.CreatedAt),
			"likes":     c.Likes,
			"dislikes":  c.Dislikes,
			"replies":   encodeReplies(c.Replies),
		}
		if c.EditedAt != nil {
			m["editedAt"] = encodeTime(*c.EditedAt)
		}
		out[i] = m
	}
	return out
}

func encodeReplies(replies []Reply) []any {
	out := make([]any, len(replies))
	for i, r := range replies {
		m := map[string]any{
			"id":        r.ID,
			"author":    r.Author,
			"userId":    r.UserID,
			"content":   r.Content,
			"timestamp": encodeTime(r.CreatedAt),
			"likes":     r.Likes,
			"dislikes":  r.Dislikes,
		}
		if r.EditedAt != nil {
			m["editedAt"] = encodeTime(*r.EditedAt)
		}
		out[i] = m
	}
	return out
}

func postFromFields(id string, f map[string]any) Post {
	return Post{
		ID:        id,
		Category:  Category(asString(f["category"])),
		Title:     asString(f["title"]),
		Content:   asString(f["content"]),
		Author:    asString(f["author"]),
		UserID:    asString(f["userId"]),
		CreatedAt: asTime(f["timestamp"]),
		EditedAt:  asTimePtr(f["editedAt"]),
		Likes:     asInt(f["likes"]),
		Dislikes:  asInt(f["dislikes"]),
		Replies:   asInt(f["replies"]),
		Comments:  commentsFromField(f["comments"]),
	}
}

func commentsFromField(v any) []Comment {
	arr, _ := v.([]any)
	out := make([]Comment, 0, len(arr))
	for _, e := range arr {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Comment{
			ID:        asString(m["id"]),
			Author:    asString(m["author"]),
			UserID:    asString(m["userId"]),
			Content:   asString(m["content"]),
			CreatedAt: asTime(m["timestamp"]),
			EditedAt:  asTimePtr(m["editedAt"]),
			Likes:     asInt(m["likes"]),
			Dislikes:  asInt(m["dislikes"]),
			Replies:   repliesFromField(m["replies"]),
		})
	}
	return out
}

func repliesFromField(v any) []Reply {
	arr, _ := v.([]any)
	out := make([]Reply, 0, len(arr))
	for _, e := range arr {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Reply{
			ID:        asString(m["id"]),
			Author:    asString(m["author"]),
			UserID:    asString(m["userId"]),
			Content:   asString(m["content"]),
			CreatedAt: asTime(m["timestamp"]),
			EditedAt:  asTimePtr(m["editedAt"]),
			Likes:     asInt(m["likes"]),
			Dislikes:  asInt(m["dislikes"]),
		})
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asInt tolerates the numeric types the backends hand back: native ints
// from the memory store, float64 from JSON, int32/int64 from bson.
func asInt(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

func asTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func asTimePtr(v any) *time.Time {
	if v == nil {
		return nil
	}
	t := asTime(v)
	if t.IsZero() {
		return nil
	}
	return &t
}
