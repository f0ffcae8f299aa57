package http

import (
	"log/slog"
	"os"

	"github.com/cmlabs-hris/payroll-engine-go/internal/config"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
)

func NewRouter(cfg *config.Config, conceptHandler ConceptHandler, periodHandler PeriodHandler) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(false)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "payroll-engine"),
		slog.String("version", "v1.0.0"),
		slog.String("env", cfg.App.Env),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-ID"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1", func(r chi.Router) {

		r.Route("/concepts", func(r chi.Router) {
			r.Post("/", conceptHandler.Create)
			r.Get("/", conceptHandler.List)
			r.Get("/{id}", conceptHandler.Get)
			r.Put("/{id}", conceptHandler.Update)
			r.Delete("/{id}", conceptHandler.Deactivate)
		})

		r.Route("/periods", func(r chi.Router) {
			r.Post("/", periodHandler.Create)
			r.Get("/", periodHandler.List)
			r.Get("/{id}", periodHandler.Get)

			r.Post("/{id}/process", periodHandler.Process)
			r.Post("/{id}/approve", periodHandler.Approve)
			r.Post("/{id}/pay", periodHandler.MarkPaid)
			r.Post("/{id}/close", periodHandler.Close)

			r.Get("/{id}/payrolls", periodHandler.ListPayrolls)
			r.Post("/{id}/employees/{employeeID}/calculate", periodHandler.CalculateEmployee)
		})

		r.Get("/payrolls/{id}", periodHandler.GetPayroll)
	})

	return r
}
