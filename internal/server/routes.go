package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/orkestra/internal/api/v1"
	"github.com/gosuda/orkestra/internal/api/ws"
)

func registerAPIRoutes(api huma.API, deps Deps) {
	v1.RegisterLogRoutes(api, deps.Query)
	v1.RegisterNotificationRoutes(api, deps.Store, deps.Delays, deps.Audit)
	v1.RegisterProjectRoutes(api, deps.Store, deps.Audit)
	v1.RegisterTaskRoutes(api, deps.Store, deps.Audit)
	v1.RegisterUserRoutes(api, deps.Store, deps.Audit, deps.Roles)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/activity/{target}", hub.ServeActivity)
}
