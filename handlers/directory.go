package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kentsikayet/portal/internal/api"
	"github.com/kentsikayet/portal/internal/sessions"
	"github.com/kentsikayet/portal/pkg/middleware"
)

// DirectoryHandler proxies the admin-managed lists (users, departments and
// complaint types) to the complaint API with the caller's token.
type DirectoryHandler struct {
	client *api.Client
	store  *sessions.Store
}

func NewDirectoryHandler(client *api.Client, store *sessions.Store) *DirectoryHandler {
	return &DirectoryHandler{client: client, store: store}
}

// Register mounts the admin CRUD routes behind adminRole, and a read-only
// complaint type list for every logged-in user.
func (h *DirectoryHandler) Register(r *gin.Engine, guard *middleware.Guard, adminRole string) {
	r.GET("/api/complaint-types", guard.RequireSession(), listEntities[api.ComplaintType](h))

	admin := r.Group("/api/admin", guard.RequireRole(adminRole))
	mountEntity[api.User](admin.Group("/users"), h)
	mountEntity[api.Department](admin.Group("/departments"), h)
	mountEntity[api.ComplaintType](admin.Group("/complaint-types"), h)
}

func mountEntity[T api.Entity](g *gin.RouterGroup, h *DirectoryHandler) {
	g.GET("", listEntities[T](h))
	g.POST("", createEntity[T](h))
	g.PUT("/:id", updateEntity[T](h))
	g.DELETE("/:id", deleteEntity[T](h))
}

// token returns the session token the guard attached to c.
func (h *DirectoryHandler) token(c *gin.Context) string {
	s, _ := middleware.SessionFrom(c)
	if s == nil {
		return ""
	}
	return s.Token
}

func (h *DirectoryHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, api.ErrUnauthorized) {
		if lerr := h.store.Logout(context.WithoutCancel(c.Request.Context()), middleware.SessionID(c), sessions.ReasonRejected); lerr != nil {
			log.Errorf("logout after rejected token: %v", lerr)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"redirect": middleware.LoginPath})
		return
	}
	apiFailure(c, err)
}

func listEntities[T api.Entity](h *DirectoryHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := api.List[T](c.Request.Context(), h.client, h.token(c))
		if err != nil {
			h.fail(c, err)
			return
		}
		if list == nil {
			list = []T{}
		}
		c.JSON(http.StatusOK, list)
	}
}

func createEntity[T api.Entity](h *DirectoryHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var v T
		if err := c.ShouldBindJSON(&v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		out, err := api.Create(c.Request.Context(), h.client, h.token(c), v)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, out)
	}
}

func updateEntity[T api.Entity](h *DirectoryHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var v T
		if err := c.ShouldBindJSON(&v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		out, err := api.Update(c.Request.Context(), h.client, h.token(c), id, v)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func deleteEntity[T api.Entity](h *DirectoryHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		if err := api.Delete[T](c.Request.Context(), h.client, h.token(c), id); err != nil {
			h.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
