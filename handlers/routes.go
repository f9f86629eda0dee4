package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/kentsikayet/portal/internal/api"
	"github.com/kentsikayet/portal/internal/config"
	"github.com/kentsikayet/portal/internal/dashboard"
	"github.com/kentsikayet/portal/internal/notices"
	"github.com/kentsikayet/portal/internal/sessions"
	"github.com/kentsikayet/portal/internal/storage"
	"github.com/kentsikayet/portal/pkg/middleware"
)

// Deps are the services the portal routes are built from.
type Deps struct {
	Config   *config.Config
	Client   *api.Client
	Store    *sessions.Store
	Notices  notices.Queue
	Registry *dashboard.Registry
	Photos   storage.PhotoStore
	// Credentials wrap the login and registration endpoints.
	Credentials []gin.HandlerFunc
}

// Mount registers every portal page and JSON route on r, with a not-found
// page for everything else.
func Mount(r *gin.Engine, d Deps) *middleware.Guard {
	guard := middleware.NewGuard(d.Store, d.Config.Session.CookieName)
	pages := NewPages(d.Notices, d.Config.Session.CookieName)
	LoadTemplates(r)

	NewAuthHandler(d.Client, d.Store, d.Notices, pages, guard, d.Config).Register(r, d.Credentials...)
	NewDashboardHandler(d.Registry, d.Store, d.Photos, pages, d.Config).Register(r, guard)
	NewDirectoryHandler(d.Client, d.Store).Register(r, guard, d.Config.Roles.Admin)
	RegisterPhotos(r, d.Photos)
	RegisterSwagger(r)

	r.GET(middleware.NotFoundPath, guard.Session(), pages.NotFound)
	r.NoRoute(guard.Session(), pages.NotFound)
	return guard
}
