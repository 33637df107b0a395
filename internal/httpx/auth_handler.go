package httpx

import (
	"log"
	"net/http"
	"time"

	"github.com/ariefcatur/go-pharmacy-store/internal/auth"
	"github.com/ariefcatur/go-pharmacy-store/internal/redisx"
)

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignUpInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.Auth.SignUp(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.startSession(w, r, u); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUser(u))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.startSession(w, r, u); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUser(u))
}

// startSession issues a fresh session key. A cart held under the previous key
// moves to the new one.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, u auth.User) error {
	ctx := r.Context()
	sid, err := h.Sessions.Create(ctx, u.ID)
	if err != nil {
		return err
	}
	if old := auth.SessionIDFrom(ctx); old != "" {
		if c, err := h.Carts.Get(ctx, old); err == nil && !c.Empty() {
			if err := h.Carts.Put(ctx, sid, c); err != nil {
				log.Printf("carry cart to new session: %v", err)
			}
		}
		_ = h.Carts.Clear(ctx, old)
		_ = h.Sessions.Destroy(ctx, old)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(h.sessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (h *Handler) sessionTTL() time.Duration {
	if h.Sessions.TTL > 0 {
		return h.Sessions.TTL
	}
	return redisx.TTLSession
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := auth.SessionIDFrom(ctx)
	if err := h.Carts.Clear(ctx, sid); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Sessions.Destroy(ctx, sid); err != nil {
		writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFrom(r.Context())
	writeJSON(w, http.StatusOK, toUser(u))
}
