// Package api provides the HTTP REST API and WebSocket feed for medminder.
//
// Routes live under /api/v1. Everything except /health requires a bearer
// token signed with security.jwt.secret, unless no secret is configured.
//
//	GET    /health
//	GET    /medications
//	GET    /medications/{entry}/{id}
//	POST   /medications/{entry}/{id}/dose
//	PUT    /medications/{entry}/{id}/inventory
//	GET    /medications/{entry}/{id}/history
//	POST   /services/record_dose
//	POST   /services/update_inventory
//	POST   /tags/{tag}/scan
//	POST   /tags/learn
//	GET    /tags/learn/{id}
//	DELETE /tags/learn/{id}
//	GET    /diagnostics
//	GET    /ws
//
// The server follows the same lifecycle as the other components:
//
//	srv, err := api.New(deps)
//	srv.Start(ctx)
//	defer srv.Close()
package api
