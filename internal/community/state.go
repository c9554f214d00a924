package community

// State is the engine's local picture of the board: the flat feed plus the
// detail-view copy of the currently selected post. The two overlap, so every
// transition that touches a post updates both.
//
// Transitions are pure: they take a State, return a new State, and never
// alias slices or nested structures with their input. That makes rollback a
// matter of keeping the previous value, and lets the whole state machine be
// tested without a UI or HTTP harness.
type State struct {
	Posts    []Post
	Selected *Post
}

func cloneState(s State) State {
	out := State{Posts: make([]Post, len(s.Posts))}
	for i, p := range s.Posts {
		out.Posts[i] = clonePost(p)
	}
	if s.Selected != nil {
		sel := clonePost(*s.Selected)
		out.Selected = &sel
	}
	return out
}

// withPosts replaces the whole feed, dropping the selection if its post is
// gone.
func withPosts(s State, posts []Post) State {
	out := State{Posts: make([]Post, len(posts))}
	for i, p := range posts {
		out.Posts[i] = clonePost(p)
	}
	if s.Selected != nil {
		if p, ok := postIn(out, s.Selected.ID); ok {
			out.Selected = &p
		}
	}
	return out
}

// withInsertedPost prepends a newly created post, newest first.
func withInsertedPost(s State, p Post) State {
	out := cloneState(s)
	out.Posts = append([]Post{clonePost(p)}, out.Posts...)
	return out
}

// withPost replaces the post everywhere it appears: the feed entry and, when
// selected, the detail copy.
func withPost(s State, p Post) State {
	out := cloneState(s)
	for i := range out.Posts {
		if out.Posts[i].ID == p.ID {
			out.Posts[i] = clonePost(p)
			break
		}
	}
	if out.Selected != nil && out.Selected.ID == p.ID {
		sel := clonePost(p)
		out.Selected = &sel
	}
	return out
}

func withoutPost(s State, id string) State {
	out := cloneState(s)
	posts := out.Posts[:0]
	for _, p := range out.Posts {
		if p.ID != id {
			posts = append(posts, p)
		}
	}
	out.Posts = posts
	if out.Selected != nil && out.Selected.ID == id {
		out.Selected = nil
	}
	return out
}

func withSelected(s State, id string) (State, bool) {
	p, ok := postIn(s, id)
	if !ok {
		return s, false
	}
	out := cloneState(s)
	out.Selected = &p
	return out, true
}

// postIn returns a detached copy of the post with the given id.
func postIn(s State, id string) (Post, bool) {
	for _, p := range s.Posts {
		if p.ID == id {
			return clonePost(p), true
		}
	}
	return Post{}, false
}

// filterByCategory is a pure projection over the feed; "All" and the empty
// string select everything.
func filterByCategory(s State, category string) []Post {
	var out []Post
	for _, p := range s.Posts {
		if category == "" || category == "All" || string(p.Category) == category {
			out = append(out, clonePost(p))
		}
	}
	return out
}
