package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"

	"github.com/kentsikayet/portal/internal/api"
	"github.com/kentsikayet/portal/internal/complaints"
	"github.com/kentsikayet/portal/internal/config"
	"github.com/kentsikayet/portal/internal/dashboard"
	"github.com/kentsikayet/portal/internal/mapview"
	"github.com/kentsikayet/portal/internal/sessions"
	"github.com/kentsikayet/portal/internal/storage"
	"github.com/kentsikayet/portal/pkg/middleware"
)

// DashboardHandler serves the three role-scoped dashboards: an HTML shell at
// /<variant> and its JSON surface under /api/dashboard/<variant>.
type DashboardHandler struct {
	registry *dashboard.Registry
	store    *sessions.Store
	photos   storage.PhotoStore
	pages    *Pages
	roles    config.RolesConfig
	mapCfg   config.MapConfig
}

func NewDashboardHandler(reg *dashboard.Registry, store *sessions.Store, photos storage.PhotoStore, pages *Pages, cfg *config.Config) *DashboardHandler {
	return &DashboardHandler{
		registry: reg,
		store:    store,
		photos:   photos,
		pages:    pages,
		roles:    cfg.Roles,
		mapCfg:   cfg.Map,
	}
}

// roleFor names the role a variant requires.
func (h *DashboardHandler) roleFor(v dashboard.Variant) string {
	switch v {
	case dashboard.Admin:
		return h.roles.Admin
	case dashboard.Department:
		return h.roles.Department
	}
	return h.roles.Citizen
}

func (h *DashboardHandler) Register(r *gin.Engine, guard *middleware.Guard) {
	for _, v := range []dashboard.Variant{dashboard.Citizen, dashboard.Admin, dashboard.Department} {
		role := guard.RequireRole(h.roleFor(v))
		r.GET("/"+string(v), role, h.page(v))

		g := r.Group("/api/dashboard/"+string(v), role)
		g.GET("", h.view(v))
		g.POST("/refresh", h.refresh(v))
		g.GET("/map.geojson", h.geojson(v))
		g.POST("/map/click", h.click(v))
		g.POST("/map/popup/:id", h.openPopup(v))
		g.DELETE("/map/popup", h.closePopup(v))
		g.GET("/complaints/:id", h.record(v))
		g.POST("/complaints", h.save(v))
		g.PUT("/complaints/:id", h.save(v))
		g.PUT("/complaints/:id/status", h.status(v))
		g.DELETE("/complaints/:id", h.remove(v))
		g.POST("/complaints/:id/verify", h.verify(v))
		g.POST("/complaints/:id/resolve", h.resolve(v))
	}
}

// board returns the caller's dashboard for v, loading it on first use. It
// writes the error response itself and returns ok=false on failure.
func (h *DashboardHandler) board(c *gin.Context, v dashboard.Variant) (*dashboard.Dashboard, string, bool) {
	sess, ok := middleware.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"redirect": middleware.LoginPath})
		return nil, "", false
	}
	d, _, err := h.registry.Get(sess.ID, v)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, "", false
	}
	if !d.Loaded() {
		if err := d.Load(c.Request.Context(), sess.Token); err != nil {
			h.fail(c, sess.ID, err)
			return nil, "", false
		}
	}
	return d, sess.Token, true
}

// fail ends the session when the API rejects its token and otherwise maps err
// onto a JSON error.
func (h *DashboardHandler) fail(c *gin.Context, sid string, err error) {
	if errors.Is(err, api.ErrUnauthorized) {
		if lerr := h.store.Logout(context.WithoutCancel(c.Request.Context()), sid, sessions.ReasonRejected); lerr != nil {
			log.Errorf("logout after rejected token: %v", lerr)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"redirect": middleware.LoginPath})
		return
	}
	apiFailure(c, err)
}

func idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (h *DashboardHandler) page(v dashboard.Variant) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.pages.Render(c, http.StatusOK, "dashboard.tmpl", gin.H{
			"variant":  string(v),
			"api":      "/api/dashboard/" + string(v),
			"map":      h.mapCfg,
			"statuses": complaints.Statuses(),
		})
	}
}

// view returns the dashboard snapshot; a "type" query parameter applies that
// filter first.
func (h *DashboardHandler) view(v dashboard.Variant) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, _, ok := h.board(c, v)
		if !ok {
			return
		}
		if kind, set := c.GetQuery("type"); set {
			c.JSON(http.StatusOK, d.Filter(kind))
			return
		}
		c.JSON(http.StatusOK, d.View())
	}
}

func (h *DashboardHandler) refresh(v dashboard.Variant) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, token, ok := h.board(c, v)
		if !ok {
			return
		}
		if err := d.Load(c.Request.Context(), token); err != nil {
			h.fail(c, middleware.SessionID(c), err)
			return
		}
		c.JSON(http.StatusOK, d.View())
	}
}

// viewportQuery is the optional visible area of a GeoJSON request.
type viewportQuery struct {
	Lon    float64 `form:"lon"`
	Lat    float64 `form:"lat"`
	Zoom   float64 `form:"zoom"`
	Width  int     `form:"width"`
	Height int     `form:"height"`
}

// geojson returns the markers as GeoJSON, only those inside the viewport when
// one is given in the query.
func (h *DashboardHandler) geojson(v dashboard.Variant) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q viewportQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		d, _, ok := h.board(c, v)
		if !ok {
			return
		}
		d.View()
		if q.Width > 0 && q.Height > 0 {
			vp := mapview.Viewport{Center: orb.Point{q.Lon, q.Lat}, Zoom: q.Zoom, Width: q.Width, Height: q.Height}
			c.JSON(http.StatusOK, d.Layer().FeatureCollectionIn(vp))
			return
		}
		c.JSON(http.StatusOK, d.Layer().FeatureCollection())
	}
}

type clickRequest struct {
	X        float64          `json:"x"`
	Y        float64          `json:"y"`
	Viewport mapview.Viewport `json:"viewport"`
}

func (h *DashboardHandler) click(v dashboard.Variant) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req clickRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Viewport.Width <= 0 || req.Viewport.Height <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "viewport size required"})
			return
		}
		d, _, ok := h.board(c, v)
		if !ok {
			return
		}
		d.View()
		if r, hit := d.Layer().Click(req.Viewport, req.X, req.Y); hit {
			c.JSON(http.StatusOK, gin.H{"popup": r})
			return
		}
		c.JSON(http.StatusOK, gin.H{"popup": nil})
	}
}

func (h *DashboardHandler) openPopup(v dashboard.Variant) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		d, _, ok := h.board(c, v)
		if !ok {
			return
		}
		d.View()
		r, found := d.Layer().Open(id)
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "complaint has no marker"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"popup": r})
	}
}

func (h *DashboardHandler) closePopup(v dashboard.Variant) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, _, ok := h.board(c, v)
		if !ok {
			return
		}
		d.Layer().Close()
		c.Status(http.StatusNoContent)
	}
}

// record returns a cached complaint together with an edit draft of it.
func (h *DashboardHandler) record(v dashboard.Variant) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		d, _, ok := h.board(c, v)
		if !ok {
			return
		}
		r, found := d.Record(id)
		if !found {
			apiFailure(c, dashboard.ErrNotFound)
			return
		}
		c.JSON(http.StatusOK, gin.H{"record": r, "draft": complaints.DraftFrom(r)})
	}
}

func (h *DashboardHandler) save(v dashboard.Variant) gin.HandlerFunc {
	return func(c *gin.Context) {
		var draft complaints.Draft
		if err := c.ShouldBindJSON(&draft); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if c.Request.Method == http.MethodPut {
			id, ok := idParam(c)
			if !ok {
				return
			}
			draft.ID = id
		} else {
			draft.ID = 0
		}
		d, token, ok := h.board(c, v)
		if !ok {
			return
		}
		r, err := d.Save(c.Request.Context(), token, draft)
		if err != nil {
			h.fail(c, middleware.SessionID(c), err)
			return
		}
		status := http.StatusOK
		if c.Request.Method == http.MethodPost {
			status = http.StatusCreated
		}
		c.JSON(status, gin.H{"record": r})
	}
}

// status applies a status edit: through the API on the department
// dashboard, to the local cache elsewhere.
func (h *DashboardHandler) status(v dashboard.Variant) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req struct {
			Status *complaints.Status `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		d, token, ok := h.board(c, v)
		if !ok {
			return
		}
		if !v.Polls() {
			if err := d.SetStatus(id, *req.Status); err != nil {
				apiFailure(c, err)
				return
			}
			r, _ := d.Record(id)
			c.JSON(http.StatusOK, gin.H{"record": r, "local": true})
			return
		}
		r, err := d.UpdateStatus(c.Request.Context(), token, id, *req.Status)
		switch {
		case errors.Is(err, dashboard.ErrSuperseded):
			c.JSON(http.StatusAccepted, gin.H{"superseded": true})
		case err != nil:
			h.fail(c, middleware.SessionID(c), err)
		default:
			c.JSON(http.StatusOK, gin.H{"record": r})
		}
	}
}

func (h *DashboardHandler) remove(v dashboard.Variant) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		confirmed, _ := strconv.ParseBool(c.Query("confirm"))
		d, token, ok := h.board(c, v)
		if !ok {
			return
		}
		if err := d.Delete(c.Request.Context(), token, id, confirmed); err != nil {
			h.fail(c, middleware.SessionID(c), err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (h *DashboardHandler) verify(v dashboard.Variant) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		d, token, ok := h.board(c, v)
		if !ok {
			return
		}
		r, err := d.Verify(c.Request.Context(), token, id)
		if err != nil {
			h.fail(c, middleware.SessionID(c), err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"record": r})
	}
}

// resolve takes a multipart form with a "note" and an optional "photo",
// stores the photo and links the solution to the complaint.
func (h *DashboardHandler) resolve(v dashboard.Variant) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxPhotoSize+1<<20)
		note := c.PostForm("note")
		if note == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "note is required"})
			return
		}
		d, token, ok := h.board(c, v)
		if !ok {
			return
		}
		if _, found := d.Record(id); !found {
			apiFailure(c, dashboard.ErrNotFound)
			return
		}

		var photo storage.Object
		if fh, err := c.FormFile("photo"); err == nil {
			f, err := fh.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable photo"})
				return
			}
			defer f.Close()
			photo, err = h.photos.Put(c.Request.Context(), storage.Photo{
				Body:        f,
				Size:        fh.Size,
				ContentType: fh.Header.Get("Content-Type"),
			})
			if err != nil {
				apiFailure(c, err)
				return
			}
		} else if !errors.Is(err, http.ErrMissingFile) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		r, err := d.Resolve(c.Request.Context(), token, id, note, photo.URL)
		if err != nil {
			// once a solution is linked it references the photo
			if photo.Key != "" && !errors.Is(err, dashboard.ErrSolutionLinked) {
				if derr := h.photos.Delete(context.WithoutCancel(c.Request.Context()), photo.Key); derr != nil {
					log.Warnf("remove unlinked photo %s: %v", photo.Key, derr)
				}
			}
			h.fail(c, middleware.SessionID(c), err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"record": r})
	}
}
