package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/opennpo/nonprofit_books_app/internal/core/services"
	"github.com/opennpo/nonprofit_books_app/internal/middleware"
	"github.com/opennpo/nonprofit_books_app/pkg/config"
	"github.com/shopspring/decimal"
)

// Monetary amounts bind as decimal.Decimal, which the numeric validation tags
// cannot see into; decimalpositive closes that gap at the binding layer.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("decimalpositive", func(fl validator.FieldLevel) bool {
			d, ok := fl.Field().Interface().(decimal.Decimal)
			return ok && d.IsPositive()
		})
	}
}

// RegisterRoutes sets up all application routes.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, svcs *services.Container) {
	// Health check stays outside authentication.
	r.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})

	setupAPIV1Routes(r, cfg, svcs)
}

// setupAPIV1Routes configures the /api/v1 group and delegates to the
// per-entity route registrations.
func setupAPIV1Routes(r *gin.Engine, cfg *config.Config, svcs *services.Container) {
	// Apply AuthMiddleware to the entire v1 group
	v1 := r.Group("/api/v1", middleware.AuthMiddleware(cfg.JWTSecret))

	registerOrganizationRoutes(v1, svcs.Organization)
	registerContactRoutes(v1, svcs.Contact)
	registerMembershipRoutes(v1, svcs.Membership)
	registerProgramSpendingRoutes(v1, svcs.ProgramSpending)
	registerAccountRoutes(v1, svcs.Account)
	registerTransactionRoutes(v1, svcs.Ledger)
	registerBillRoutes(v1, svcs.Billing)
	registerFiscalPeriodRoutes(v1, svcs.FiscalPeriod)
}
