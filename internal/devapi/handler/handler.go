// Package handler exposes the devapi service over HTTP with the same routes
// and payloads as the municipal complaint API.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kentsikayet/portal/internal/api"
	"github.com/kentsikayet/portal/internal/complaints"
	"github.com/kentsikayet/portal/internal/devapi"
	"github.com/kentsikayet/portal/internal/devapi/service"
)

const callerKey = "caller"

// RegisterRoutes mounts every API route on r.
func RegisterRoutes(r *gin.Engine, svc *service.Service) {
	h := &handler{svc: svc}

	auth := r.Group("/auth")
	auth.POST("/login", h.login)
	auth.POST("/check-email", h.checkEmail)
	auth.POST("/send-code", h.sendCode)
	auth.POST("/verify-code", h.verifyCode)
	auth.POST("/register", h.register)

	authed := r.Group("/", h.authenticate)
	authed.GET("/complaints", h.listComplaints(api.ScopeAll))
	authed.GET("/complaints/mine", h.listComplaints(api.ScopeMine))
	authed.GET("/complaints/department", h.listComplaints(api.ScopeDepartment))
	authed.POST("/complaints", h.createComplaint)
	authed.PUT("/complaints/:id", h.updateComplaint)
	authed.DELETE("/complaints/:id", h.deleteComplaint)
	authed.POST("/complaints/:id/verify", h.verifyComplaint)
	authed.POST("/complaint-solutions", h.addSolution)
	authed.GET("/complaint-solutions/:id", h.listSolutions)
	authed.GET("/complaint-types", h.listTypes)

	admin := authed.Group("/", requireAdmin)
	for _, c := range []api.Counter{api.CountUsers, api.CountComplaints, api.CountResolvedComplaints, api.CountPendingComplaints} {
		admin.GET(string(c), h.count(c))
	}
	admin.GET("/users", h.listUsers)
	admin.POST("/users", h.createUser)
	admin.PUT("/users/:id", h.updateUser)
	admin.DELETE("/users/:id", h.deleteUser)
	admin.GET("/departments", h.listDepartments)
	admin.POST("/departments", h.createDepartment)
	admin.PUT("/departments/:id", h.updateDepartment)
	admin.DELETE("/departments/:id", h.deleteDepartment)
	admin.POST("/complaint-types", h.createType)
	admin.PUT("/complaint-types/:id", h.updateType)
	admin.DELETE("/complaint-types/:id", h.deleteType)
}

type handler struct {
	svc *service.Service
}

func (h *handler) authenticate(c *gin.Context) {
	raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
		return
	}
	caller, err := h.svc.Issuer().Verify(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "details": err.Error()})
		return
	}
	c.Set(callerKey, caller)
	c.Next()
}

func requireAdmin(c *gin.Context) {
	if !caller(c).IsAdmin() {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return
	}
	c.Next()
}

func caller(c *gin.Context) devapi.Caller {
	v, _ := c.Get(callerKey)
	cl, _ := v.(devapi.Caller)
	return cl
}

func idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// fail writes err with the status the complaint API uses for it.
func fail(c *gin.Context, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Bu e-posta adresi zaten kayıtlı."})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *handler) login(c *gin.Context) {
	var req api.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tok, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tok})
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code"`
}

func (h *handler) checkEmail(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	exists, err := h.svc.EmailRegistered(c.Request.Context(), req.Email)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": exists})
}

func (h *handler) sendCode(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := h.svc.SendCode(c.Request.Context(), req.Email); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

func (h *handler) verifyCode(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.VerifyCode(req.Email, req.Code); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": true})
}

func (h *handler) register(c *gin.Context) {
	var req api.Registration
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a.User())
}

func (h *handler) listComplaints(scope api.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := h.svc.Complaints(c.Request.Context(), caller(c), scope)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func (h *handler) createComplaint(c *gin.Context) {
	var r complaints.Record
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.svc.CreateComplaint(c.Request.Context(), caller(c), r)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *handler) updateComplaint(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var r complaints.Record
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	r.ID = id
	out, err := h.svc.UpdateComplaint(c.Request.Context(), caller(c), r)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) deleteComplaint(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteComplaint(c.Request.Context(), caller(c), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) verifyComplaint(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	out, err := h.svc.VerifyComplaint(c.Request.Context(), caller(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) addSolution(c *gin.Context) {
	var s api.Solution
	if err := c.ShouldBindJSON(&s); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.svc.AddSolution(c.Request.Context(), caller(c), s)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *handler) listSolutions(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	list, err := h.svc.Solutions(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handler) count(counter api.Counter) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := h.svc.Count(c.Request.Context(), counter)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": n})
	}
}
