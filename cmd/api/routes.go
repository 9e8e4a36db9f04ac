package main

import (
	"assist-platform/internal/audit"
	"assist-platform/internal/capability"
	"assist-platform/internal/httpapi"
	"assist-platform/internal/rbac"
	"assist-platform/internal/transport"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	keychain *capability.Keychain
	creds    *transport.Chain
	authMW   gin.HandlerFunc
	audit    *audit.Service
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, deps routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")

	// AUTH routes (token issuance).
	v1.POST("/auth/login", h.Login)

	// operator API, behind session auth
	secured := v1.Group("")
	secured.Use(deps.authMW)
	{
		secured.GET("/me", h.Me)

		// CASES routes. Dispatchers and gruistas run cases; admins pass the
		// role check implicitly.
		casesGroup := secured.Group("/cases")
		casesGroup.Use(rbac.RequireOrg())
		casesGroup.Use(rbac.RequireAnyRole(rbac.RoleDispatcher, rbac.RoleGruista))
		{
			casesGroup.POST("", h.CreateCase)
			casesGroup.GET("/:case_id", h.GetCase)
			casesGroup.POST("/:case_id/links/client", h.ClientLink)
			casesGroup.POST("/:case_id/links/workshop", h.WorkshopLink)
		}
	}

	// SHARE routes, reached through capability links with the token in the
	// query string. No operator session is involved here.
	client := r.Group("/share/client/cases/:case_id")
	client.Use(capability.RequireCapability(deps.keychain, capability.TypeClient, guardOpts(deps, capability.TypeClient)))
	{
		client.GET("/diagnosis", h.ShareDiagnosis)
		client.POST("/answers", h.ShareSubmitAnswers)
	}

	workshop := r.Group("/share/workshop/cases/:case_id")
	workshop.Use(capability.RequireCapability(deps.keychain, capability.TypeWorkshop, guardOpts(deps, capability.TypeWorkshop)))
	{
		workshop.GET("/diagnosis", h.ShareDiagnosis)
		workshop.POST("/reception", h.ShareWorkshopReception)
	}
}

// guardOpts builds the shared guard configuration for one link type: scoped
// credential handoff plus best-effort audit hooks.
func guardOpts(deps routeDeps, typ capability.Type) capability.GuardOptions {
	return capability.GuardOptions{
		Credentials: deps.creds,
		OnGrant: func(c *gin.Context, g capability.Grant) {
			_ = deps.audit.LogAccessGranted(c.Request.Context(), g.CaseID, string(g.Type), c.ClientIP())
		},
		OnDeny: func(c *gin.Context, reason capability.DenyReason) {
			_ = deps.audit.LogAccessDenied(c.Request.Context(), c.Param("case_id"), string(typ), string(reason), c.ClientIP())
		},
	}
}
