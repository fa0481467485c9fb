package http

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/config"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(app config.AppConfig, JWTService jwt.Service, payrollHandler PayrollHandler) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(app.Env != "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "payroll-engine"),
		slog.String("env", app.Env),
	)

	allowedOrigins := app.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		MaxAge:           300,
	}))

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.Success(w, map[string]string{"status": "ok"})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "Route not found")
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired)
			r.Use(middleware.RequireCompany)

			r.Route("/payroll", func(r chi.Router) {
				r.With(middleware.RequirePermission(user.PermissionPayrollView)).Get("/settings", payrollHandler.GetSettings)
				r.With(middleware.RequirePermission(user.PermissionPayrollSettings)).Put("/settings", payrollHandler.UpdateSettings)
				r.With(middleware.RequirePermission(user.PermissionPayrollView)).Get("/tax-brackets", payrollHandler.GetTaxBrackets)
				r.With(middleware.RequirePermission(user.PermissionPayrollSettings)).Put("/tax-brackets", payrollHandler.ReplaceTaxBrackets)
				r.With(middleware.RequirePermission(user.PermissionPayrollView)).Get("/summary", payrollHandler.Summary)

				r.Route("/runs", func(r chi.Router) {
					r.With(middleware.RequirePermission(user.PermissionPayrollView)).Get("/", payrollHandler.ListRuns)

					r.Group(func(r chi.Router) {
						r.Use(middleware.RequirePermission(user.PermissionPayrollGenerate))
						r.Post("/", payrollHandler.Generate)
						r.Post("/bulk", payrollHandler.BulkGenerate)
					})
					r.With(middleware.RequirePermission(user.PermissionPayrollPay)).Post("/pay", payrollHandler.BulkMarkPaid)

					r.Route("/{id}", func(r chi.Router) {
						r.With(middleware.RequirePermission(user.PermissionPayrollView)).Get("/", payrollHandler.GetRun)
						r.With(middleware.RequirePermission(user.PermissionPayrollView)).Get("/payslip", payrollHandler.Payslip)
						r.With(middleware.RequirePermission(user.PermissionPayrollGenerate)).Delete("/", payrollHandler.DeleteRun)
						r.With(middleware.RequirePermission(user.PermissionPayrollApprove)).Post("/approve", payrollHandler.Approve)
						r.With(middleware.RequirePermission(user.PermissionPayrollPay)).Post("/pay", payrollHandler.MarkPaid)

						// Edits, only while pending
						r.Group(func(r chi.Router) {
							r.Use(middleware.RequirePermission(user.PermissionPayrollEdit))
							r.Post("/recalculate", payrollHandler.Recalculate)
							r.Post("/components", payrollHandler.AddComponent)
							r.Put("/components/{componentId}", payrollHandler.UpdateComponent)
							r.Delete("/components/{componentId}", payrollHandler.DeleteComponent)
						})
					})
				})
			})
		})
	})
	return r
}
