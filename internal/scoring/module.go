// Package scoring provides the client performance scoring bounded context.
// It converts metric snapshots, alert activity, and subscription data into a
// 0-100 health score with lifecycle stage, flags, and recommendations.
package scoring

import (
	apphttp "agency_portal_backend/internal/http"
	"agency_portal_backend/internal/scoring/handler"
	"agency_portal_backend/internal/scoring/repository"
	"agency_portal_backend/internal/scoring/service"
	"agency_portal_backend/internal/scoring/weights"
	"agency_portal_backend/platform/logger"
	"agency_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the scoring bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    repository.Repository
}

// NewModule creates and initializes the scoring module with all its
// dependencies. cache may be nil when redis is not configured.
func NewModule(pool *pgxpool.Pool, table *weights.Table, cache *service.Cache, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, table, cache, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "scoring"
}

// Service returns the service layer for external use (scheduler, backfill).
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the repository for direct access if needed.
func (m *Module) Repository() repository.Repository {
	return m.repo
}

// RegisterRoutes mounts scoring routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	clients := ctx.Protected.Group("/clients/:id")
	clients.GET("/performance", m.handler.GetPerformance)
	clients.POST("/performance/recompute", m.handler.Recompute)
	clients.GET("/performance/history", m.handler.GetHistory)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
