package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kentsikayet/portal/internal/api"
	"github.com/kentsikayet/portal/internal/claims"
	"github.com/kentsikayet/portal/internal/config"
	"github.com/kentsikayet/portal/internal/notices"
	"github.com/kentsikayet/portal/internal/sessions"
	"github.com/kentsikayet/portal/pkg/middleware"
)

// AuthHandler serves login, logout, registration and the session status
// endpoint.
type AuthHandler struct {
	client  *api.Client
	store   *sessions.Store
	notices notices.Queue
	pages   *Pages
	guard   *middleware.Guard
	roles   config.RolesConfig
	secure  bool
}

func NewAuthHandler(client *api.Client, store *sessions.Store, q notices.Queue, pages *Pages, guard *middleware.Guard, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		client:  client,
		store:   store,
		notices: q,
		pages:   pages,
		guard:   guard,
		roles:   cfg.Roles,
		secure:  cfg.Session.Secure,
	}
}

// Register mounts the routes. credentials wraps the endpoints that accept a
// password or an emailed code, typically with a rate limiter.
func (h *AuthHandler) Register(r *gin.Engine, credentials ...gin.HandlerFunc) {
	pub := r.Group("/", h.guard.Session())
	pub.GET("/", h.Home)
	pub.GET(middleware.LoginPath, h.LoginPage)
	pub.GET("/register", h.RegisterPage)
	pub.POST("/logout", h.Logout)

	cred := pub.Group("/", credentials...)
	cred.POST(middleware.LoginPath, h.Login)
	cred.POST("/api/register/check-email", h.CheckEmail)
	cred.POST("/api/register/send-code", h.SendCode)
	cred.POST("/api/register/verify-code", h.VerifyCode)
	cred.POST("/api/register", h.SignUp)

	r.GET("/api/session", h.guard.RequireSession(), h.Session)
	r.GET("/api/notices", h.Notices)
}

// homeFor picks the dashboard a user lands on after login.
func (h *AuthHandler) homeFor(cl claims.Claims) string {
	switch {
	case cl.HasRole(h.roles.Admin):
		return "/admin"
	case cl.HasRole(h.roles.Department):
		return "/department"
	case cl.HasRole(h.roles.Citizen):
		return "/citizen"
	}
	return middleware.NotFoundPath
}

func (h *AuthHandler) Home(c *gin.Context) {
	cl, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.Redirect(http.StatusFound, middleware.LoginPath)
		return
	}
	c.Redirect(http.StatusFound, h.homeFor(cl))
}

func (h *AuthHandler) LoginPage(c *gin.Context) {
	if cl, ok := middleware.ClaimsFrom(c); ok {
		c.Redirect(http.StatusFound, h.homeFor(cl))
		return
	}
	h.pages.Render(c, http.StatusOK, "login.tmpl", nil)
}

func (h *AuthHandler) RegisterPage(c *gin.Context) {
	h.pages.Render(c, http.StatusOK, "register.tmpl", nil)
}

// Login exchanges the credentials for a token, stores it under a fresh
// session id and sends the browser to its dashboard.
func (h *AuthHandler) Login(c *gin.Context) {
	var cr api.Credentials
	if err := c.ShouldBind(&cr); err != nil {
		h.loginFailed(c, http.StatusBadRequest, "E-posta ve şifre zorunludur.")
		return
	}
	ctx := c.Request.Context()
	token, err := h.client.Login(ctx, cr)
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		h.loginFailed(c, http.StatusUnauthorized, "E-posta veya şifre hatalı.")
		return
	case err != nil:
		log.Errorf("login: %v", err)
		h.loginFailed(c, http.StatusBadGateway, "Giriş yapılamadı, lütfen daha sonra tekrar deneyin.")
		return
	}

	// a previous session in this browser ends before the new one starts
	if old, err := c.Cookie(h.guard.CookieName()); err == nil && old != "" {
		if err := h.store.Logout(ctx, old, sessions.ReasonUser); err != nil {
			log.Warnf("drop previous session: %v", err)
		}
	}
	sid := uuid.NewString()
	sess, err := h.store.Login(ctx, sid, token)
	if errors.Is(err, sessions.ErrTokenExpired) {
		log.Warnf("login: API issued an expired token")
		h.loginFailed(c, http.StatusUnauthorized, "Oturumunuzun süresi doldu, lütfen tekrar giriş yapın.")
		return
	}
	if err != nil {
		log.Errorf("store session: %v", err)
		h.loginFailed(c, http.StatusBadGateway, "Sunucudan geçersiz oturum bilgisi alındı.")
		return
	}
	h.setCookie(c, sid, h.store.TTL())
	target := h.homeFor(sess.Claims())
	if middleware.WantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"redirect": target, "userName": sess.DisplayName})
		return
	}
	c.Redirect(http.StatusFound, target)
}

func (h *AuthHandler) loginFailed(c *gin.Context, status int, msg string) {
	if middleware.WantsJSON(c) {
		c.JSON(status, gin.H{"error": msg})
		return
	}
	h.pages.Render(c, status, "login.tmpl", gin.H{"error": msg, "email": c.PostForm("email")})
}

// Logout ends the session. The cookie stays so the logout notice can be
// shown on the login page.
func (h *AuthHandler) Logout(c *gin.Context) {
	sid, _ := c.Cookie(h.guard.CookieName())
	if err := h.store.Logout(c.Request.Context(), sid, sessions.ReasonUser); err != nil {
		log.Errorf("logout: %v", err)
	}
	if middleware.WantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"redirect": middleware.LoginPath})
		return
	}
	c.Redirect(http.StatusFound, middleware.LoginPath)
}

// Session reports the remaining lifetime of the caller's session.
func (h *AuthHandler) Session(c *gin.Context) {
	sess, _ := middleware.SessionFrom(c)
	remaining, err := h.store.Remaining(c.Request.Context(), sess.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session lookup failed"})
		return
	}
	if remaining <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"redirect": middleware.LoginPath})
		return
	}
	cl := sess.Claims()
	c.JSON(http.StatusOK, gin.H{
		"userName":    sess.DisplayName,
		"roles":       cl.Roles.Sorted(),
		"expiresAt":   sess.Deadline(),
		"remainingMs": remaining.Milliseconds(),
		"home":        h.homeFor(cl),
	})
}

// Notices drains the browser's pending notices.
func (h *AuthHandler) Notices(c *gin.Context) {
	sid, _ := c.Cookie(h.guard.CookieName())
	if sid == "" {
		c.JSON(http.StatusOK, gin.H{"notices": []notices.Notice{}})
		return
	}
	list, err := h.notices.Drain(c.Request.Context(), sid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read notices"})
		return
	}
	if list == nil {
		list = []notices.Notice{}
	}
	c.JSON(http.StatusOK, gin.H{"notices": list})
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (h *AuthHandler) CheckEmail(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	exists, err := h.client.EmailRegistered(c.Request.Context(), req.Email)
	if err != nil {
		apiFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": exists})
}

func (h *AuthHandler) SendCode(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.client.SendCode(c.Request.Context(), req.Email); err != nil {
		apiFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Doğrulama kodu gönderildi."})
}

func (h *AuthHandler) VerifyCode(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
		Code  string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.client.VerifyCode(c.Request.Context(), req.Email, req.Code); err != nil {
		apiFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": true})
}

// SignUp creates the account and sends the browser back to the login page
// with a notice.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var reg api.Registration
	if err := c.ShouldBindJSON(&reg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if err := h.client.Register(ctx, reg); err != nil {
		apiFailure(c, err)
		return
	}
	sid, err := c.Cookie(h.guard.CookieName())
	if err != nil || sid == "" {
		sid = uuid.NewString()
		h.setCookie(c, sid, h.store.TTL())
	}
	if err := h.notices.Notify(ctx, sid, "success", "Kayıt tamamlandı, giriş yapabilirsiniz."); err != nil {
		log.Warnf("register notice: %v", err)
	}
	c.JSON(http.StatusCreated, gin.H{"redirect": middleware.LoginPath})
}

func (h *AuthHandler) setCookie(c *gin.Context, sid string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.guard.CookieName(), sid, int(ttl.Seconds()), "/", "", h.secure, true)
}
