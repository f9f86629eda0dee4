package handlers

import (
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kentsikayet/portal/internal/api"
	"github.com/kentsikayet/portal/internal/complaints"
	"github.com/kentsikayet/portal/internal/dashboard"
	"github.com/kentsikayet/portal/internal/notices"
	"github.com/kentsikayet/portal/internal/storage"
	"github.com/kentsikayet/portal/pkg/logger"
	"github.com/kentsikayet/portal/pkg/middleware"
)

var log = logger.For("web")

//go:embed templates/*.tmpl
var templateFS embed.FS

// LoadTemplates parses the page templates and installs them on r.
func LoadTemplates(r *gin.Engine) {
	t := template.Must(template.New("").Funcs(template.FuncMap{
		"statusLabel": func(s complaints.Status) string { return s.Label() },
	}).ParseFS(templateFS, "templates/*.tmpl"))
	r.SetHTMLTemplate(t)
}

// Pages renders full HTML pages, draining the browser's pending notices into
// each one.
type Pages struct {
	notices notices.Queue
	cookie  string
}

func NewPages(q notices.Queue, cookie string) *Pages {
	return &Pages{notices: q, cookie: cookie}
}

// Render writes template name with data plus "notices" and "user".
func (p *Pages) Render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if sid, err := c.Cookie(p.cookie); err == nil && sid != "" && p.notices != nil {
		list, err := p.notices.Drain(c.Request.Context(), sid)
		if err != nil {
			log.Warnf("drain notices: %v", err)
		}
		data["notices"] = list
	}
	if s, ok := middleware.SessionFrom(c); ok {
		data["user"] = s.DisplayName
	}
	c.HTML(status, name, data)
}

// NotFound renders the not-found page, or a JSON 404 for page script.
func (p *Pages) NotFound(c *gin.Context) {
	if middleware.WantsJSON(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	p.Render(c, http.StatusNotFound, "not_found.tmpl", nil)
}

// apiFailure maps an error from the complaint API, the dashboards or photo
// storage onto a JSON response.
func apiFailure(c *gin.Context, err error) {
	var fe complaints.FieldErrors
	switch {
	case errors.As(err, &fe):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "fields": fe})
	case errors.Is(err, dashboard.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, dashboard.ErrNotConfirmed):
		c.JSON(http.StatusPreconditionRequired, gin.H{"error": err.Error(), "confirm": true})
	case errors.Is(err, dashboard.ErrUnsupported):
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": err.Error()})
	case errors.Is(err, storage.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, storage.ErrUnsupportedType):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
	default:
		var ae *api.Error
		if errors.As(err, &ae) && ae.Status >= 400 && ae.Status < 500 {
			c.JSON(ae.Status, gin.H{"error": ae.Message})
			return
		}
		log.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Şikayet servisine ulaşılamadı."})
	}
}
