package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/BalmDeveloper/balm-health-app-sub001/internal/auth"
	"github.com/BalmDeveloper/balm-health-app-sub001/internal/community"
	"github.com/BalmDeveloper/balm-health-app-sub001/internal/log"
)

// Error codes returned to clients alongside the HTTP status.
const (
	CodeAuthRequired       = "AUTH_REQUIRED"
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotOwner           = "NOT_OWNER"
	CodeNotFound           = "NOT_FOUND"
	CodeRemoteWriteFailure = "REMOTE_WRITE_FAILURE"
	CodeRemoteReadFailure  = "REMOTE_READ_FAILURE"
	CodeParsing            = "PARSING_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

// HTTPError carries what the client sees (Status, Code, Message) and the
// internal error for the server log.
type HTTPError struct {
	Status  int    `json:"status"`
	Code    string `json:"error_code"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

type apiFunc func(w http.ResponseWriter, r *http.Request) *HTTPError

type Handler struct {
	db       *sql.DB
	sessions *auth.Manager
	engine   *community.Engine
}

func New(db *sql.DB, sessions *auth.Manager, engine *community.Engine) *Handler {
	return &Handler{db: db, sessions: sessions, engine: engine}
}

// handle converts an apiFunc into an http.HandlerFunc, writing failures as
// one JSON shape and logging the internal error centrally.
func (h *Handler) handle(fn apiFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		e := fn(w, r)
		if e == nil {
			return
		}
		if e.Err != nil {
			log.Warn.Printf("%s %s: %v", r.Method, r.URL.Path, e.Err)
		}
		w.WriteHeader(e.Status)
		if err := json.NewEncoder(w).Encode(e); err != nil {
			log.Error.Printf("encode error response: %v", err)
		}
	}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/register", h.handle(h.register)).Methods(http.MethodPost)
	r.HandleFunc("/api/login", h.handle(h.login)).Methods(http.MethodPost)
	r.HandleFunc("/api/logout", h.handle(h.logout)).Methods(http.MethodPost)

	r.HandleFunc("/api/posts", h.handle(h.listPosts)).Methods(http.MethodGet)
	r.HandleFunc("/api/posts", h.handle(h.createPost)).Methods(http.MethodPost)
	r.HandleFunc("/api/posts/{id}", h.handle(h.getPost)).Methods(http.MethodGet)
	r.HandleFunc("/api/posts/{id}", h.handle(h.updatePost)).Methods(http.MethodPut)
	r.HandleFunc("/api/posts/{id}", h.handle(h.deletePost)).Methods(http.MethodDelete)

	r.HandleFunc("/api/posts/{id}/comments", h.handle(h.addComment)).Methods(http.MethodPost)
	r.HandleFunc("/api/posts/{id}/comments/{cid}", h.handle(h.editComment)).Methods(http.MethodPut)
	r.HandleFunc("/api/posts/{id}/comments/{cid}", h.handle(h.deleteComment)).Methods(http.MethodDelete)
	r.HandleFunc("/api/posts/{id}/comments/{cid}/replies", h.handle(h.addReply)).Methods(http.MethodPost)
	r.HandleFunc("/api/posts/{id}/replies/{rid}", h.handle(h.editReply)).Methods(http.MethodPut)
	r.HandleFunc("/api/posts/{id}/replies/{rid}", h.handle(h.deleteReply)).Methods(http.MethodDelete)

	r.HandleFunc("/api/votes", h.handle(h.vote)).Methods(http.MethodPost)
}

// actor resolves the session to the acting user, nil when signed out. The
// engine treats nil as AuthRequired.
func (h *Handler) actor(r *http.Request) *community.Actor {
	uid, ok := h.sessions.CurrentUserID(r)
	if !ok {
		return nil
	}
	var alias string
	if err := h.db.QueryRow(`SELECT alias FROM users WHERE id = ?`, uid).Scan(&alias); err != nil {
		log.Warn.Printf("alias lookup for %s: %v", uid, err)
	}
	return &community.Actor{UserID: uid, Alias: alias}
}

// engineError maps the engine's failure taxonomy onto statuses and codes.
func engineError(err error) *HTTPError {
	var ve *community.ValidationError
	var rf *community.RemoteFailure
	switch {
	case errors.Is(err, community.ErrAuthRequired):
		return &HTTPError{Status: http.StatusUnauthorized, Code: CodeAuthRequired, Message: "sign in required"}
	case errors.Is(err, community.ErrNotOwner):
		return &HTTPError{Status: http.StatusForbidden, Code: CodeNotOwner, Message: "only the author can do that"}
	case errors.Is(err, community.ErrNotFound):
		return &HTTPError{Status: http.StatusNotFound, Code: CodeNotFound, Message: "not found"}
	case errors.As(err, &ve):
		return &HTTPError{Status: http.StatusBadRequest, Code: CodeValidation, Message: ve.Error()}
	case errors.As(err, &rf):
		code := CodeRemoteReadFailure
		if rf.Write {
			code = CodeRemoteWriteFailure
		}
		return &HTTPError{Status: http.StatusBadGateway, Code: code, Message: "the community service is unavailable, try again", Err: err}
	}
	return &HTTPError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "internal error", Err: err}
}

func decodeBody(r *http.Request, dst any) *HTTPError {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &HTTPError{Status: http.StatusBadRequest, Code: CodeParsing, Message: "invalid request body", Err: err}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) *HTTPError {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error.Printf("encode response: %v", err)
	}
	return nil
}

// -------- accounts

type credentials struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) *HTTPError {
	var c credentials
	if e := decodeBody(r, &c); e != nil {
		return e
	}
	c.Email = strings.TrimSpace(c.Email)
	c.Username = strings.TrimSpace(c.Username)
	if c.Email == "" || c.Username == "" || c.Password == "" {
		return &HTTPError{Status: http.StatusBadRequest, Code: CodeValidation, Message: "email, username and password are required"}
	}

	hash, err := auth.HashPassword(c.Password)
	if err != nil {
		return &HTTPError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "internal error", Err: err}
	}

	id := uuid.New().String()
	_, err = h.db.Exec(`INSERT INTO users(id,email,username,alias,password_hash,created_at) VALUES(?,?,?,?,?,?)`,
		id, c.Email, c.Username, community.NewAlias(), hash, time.Now())
	if err != nil {
		return &HTTPError{Status: http.StatusBadRequest, Code: CodeValidation, Message: "email or username already taken", Err: err}
	}
	return writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) *HTTPError {
	var c credentials
	if e := decodeBody(r, &c); e != nil {
		return e
	}

	var id, hash string
	err := h.db.QueryRow(`SELECT id, password_hash FROM users WHERE email = ?`, strings.TrimSpace(c.Email)).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return &HTTPError{Status: http.StatusUnauthorized, Code: CodeAuthRequired, Message: "wrong email or password"}
	}
	if err != nil {
		return &HTTPError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "internal error", Err: err}
	}
	if !auth.CheckPassword(c.Password, hash) {
		return &HTTPError{Status: http.StatusUnauthorized, Code: CodeAuthRequired, Message: "wrong email or password"}
	}

	// One live session per account.
	h.db.Exec(`DELETE FROM sessions WHERE user_id = ?`, id)
	if err := h.sessions.Create(w, id); err != nil {
		return &HTTPError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "internal error", Err: err}
	}
	return writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) *HTTPError {
	h.sessions.Destroy(w, r)
	return writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// -------- posts

func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request) *HTTPError {
	posts, err := h.engine.LoadPosts(r.Context())
	if err != nil {
		return engineError(err)
	}
	if cat := r.URL.Query().Get("category"); cat != "" {
		posts = h.engine.FilterByCategory(cat)
	}
	if posts == nil {
		posts = []community.Post{}
	}
	return writeJSON(w, http.StatusOK, posts)
}

func (h *Handler) getPost(w http.ResponseWriter, r *http.Request) *HTTPError {
	post, err := h.engine.SelectPost(mux.Vars(r)["id"])
	if err != nil {
		return engineError(err)
	}
	return writeJSON(w, http.StatusOK, post)
}

type postBody struct {
	Category string `json:"category"`
	Title    string `json:"title"`
	Content  string `json:"content"`
}

func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) *HTTPError {
	var b postBody
	if e := decodeBody(r, &b); e != nil {
		return e
	}
	post, err := h.engine.CreatePost(r.Context(), h.actor(r), b.Category, b.Title, b.Content)
	if err != nil {
		return engineError(err)
	}
	return writeJSON(w, http.StatusCreated, post)
}

func (h *Handler) updatePost(w http.ResponseWriter, r *http.Request) *HTTPError {
	var b postBody
	if e := decodeBody(r, &b); e != nil {
		return e
	}
	post, err := h.engine.UpdatePost(r.Context(), h.actor(r), mux.Vars(r)["id"], b.Title, b.Content)
	if err != nil {
		return engineError(err)
	}
	return writeJSON(w, http.StatusOK, post)
}

func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request) *HTTPError {
	if err := h.engine.DeletePost(r.Context(), h.actor(r), mux.Vars(r)["id"]); err != nil {
		return engineError(err)
	}
	return writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// -------- comments and replies

type textBody struct {
	Content string `json:"content"`
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) *HTTPError {
	var b textBody
	if e := decodeBody(r, &b); e != nil {
		return e
	}
	post, err := h.engine.AddComment(r.Context(), h.actor(r), mux.Vars(r)["id"], b.Content)
	if err != nil {
		return engineError(err)
	}
	return writeJSON(w, http.StatusCreated, post)
}

func (h *Handler) editComment(w http.ResponseWriter, r *http.Request) *HTTPError {
	var b textBody
	if e := decodeBody(r, &b); e != nil {
		return e
	}
	vars := mux.Vars(r)
	post, err := h.engine.EditComment(r.Context(), h.actor(r), vars["id"], vars["cid"], b.Content)
	if err != nil {
		return engineError(err)
	}
	return writeJSON(w, http.StatusOK, post)
}

func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request) *HTTPError {
	vars := mux.Vars(r)
	post, err := h.engine.DeleteComment(r.Context(), h.actor(r), vars["id"], vars["cid"])
	if err != nil {
		return engineError(err)
	}
	return writeJSON(w, http.StatusOK, post)
}

func (h *Handler) addReply(w http.ResponseWriter, r *http.Request) *HTTPError {
	var b textBody
	if e := decodeBody(r, &b); e != nil {
		return e
	}
	vars := mux.Vars(r)
	post, err := h.engine.AddReply(r.Context(), h.actor(r), vars["id"], vars["cid"], b.Content)
	if err != nil {
		return engineError(err)
	}
	return writeJSON(w, http.StatusCreated, post)
}

func (h *Handler) editReply(w http.ResponseWriter, r *http.Request) *HTTPError {
	var b textBody
	if e := decodeBody(r, &b); e != nil {
		return e
	}
	vars := mux.Vars(r)
	post, err := h.engine.EditReply(r.Context(), h.actor(r), vars["id"], vars["rid"], b.Content)
	if err != nil {
		return engineError(err)
	}
	return writeJSON(w, http.StatusOK, post)
}

func (h *Handler) deleteReply(w http.ResponseWriter, r *http.Request) *HTTPError {
	vars := mux.Vars(r)
	post, err := h.engine.DeleteReply(r.Context(), h.actor(r), vars["id"], vars["rid"])
	if err != nil {
		return engineError(err)
	}
	return writeJSON(w, http.StatusOK, post)
}

// -------- votes

type voteBody struct {
	Scope    string `json:"scope"`
	PostID   string `json:"postId"`
	TargetID string `json:"targetId"`
	Up       bool   `json:"up"`
}

func (h *Handler) vote(w http.ResponseWriter, r *http.Request) *HTTPError {
	var b voteBody
	if e := decodeBody(r, &b); e != nil {
		return e
	}
	scope, ok := community.ParseScope(b.Scope)
	if !ok {
		return &HTTPError{Status: http.StatusBadRequest, Code: CodeValidation, Message: "scope must be post, comment or reply"}
	}
	post, err := h.engine.Vote(r.Context(), h.actor(r), scope, b.PostID, b.TargetID, b.Up)
	if err != nil {
		return engineError(err)
	}
	return writeJSON(w, http.StatusOK, post)
}
