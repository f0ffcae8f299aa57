package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/cmlabs-hris/payroll-engine-go/internal/config"
	"github.com/cmlabs-hris/payroll-engine-go/internal/fixtures"
	appHTTP "github.com/cmlabs-hris/payroll-engine-go/internal/handler/http"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/formula"
	"github.com/cmlabs-hris/payroll-engine-go/internal/repository/postgresql"
	attendanceService "github.com/cmlabs-hris/payroll-engine-go/internal/service/attendance"
	conceptService "github.com/cmlabs-hris/payroll-engine-go/internal/service/concept"
	payrollService "github.com/cmlabs-hris/payroll-engine-go/internal/service/payroll"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(
		slog.String("app", "payroll-engine"),
		slog.String("env", cfg.App.Env),
	)

	db, err := database.NewPostgreSQLDB(context.Background(), cfg.DatabaseURL(), database.PoolOptions{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		fmt.Println("Error connecting to database:", err)
		return
	}

	taxRows := make([][3]string, 0, len(cfg.Tax.Brackets))
	for _, b := range cfg.Tax.Brackets {
		taxRows = append(taxRows, [3]string{b.Floor, b.Ceiling, b.Rate})
	}
	taxTable, err := formula.ParseTaxTable(taxRows)
	if err != nil {
		fmt.Println("Error building tax table:", err)
		return
	}

	vocab := formula.NewVocabulary(
		formula.VarBaseSalary,
		formula.VarWorkedDays,
		formula.VarWorkedHours,
		formula.VarOvertimeHours,
		formula.VarTaxableIncome,
		formula.VarCesantiasAccumulated,
		formula.VarPeriodDays,
	)
	vocab.RegisterFunc(taxTable.IncomeTaxFunc())

	employeeRepo := postgresql.NewEmployeeRepository(db)
	conceptRepo := postgresql.NewConceptRepository(db)
	attendanceRepo := postgresql.NewAttendanceRepository(db)
	benefitRepo := postgresql.NewBenefitRepository(db)
	leaveRepo := postgresql.NewLeaveRepository(db)
	periodRepo := postgresql.NewPeriodRepository(db)
	payrollRepo := postgresql.NewPayrollRepository(db)

	if err := fixtures.EnsureDefaultConcepts(context.Background(), conceptRepo); err != nil {
		fmt.Println("Error seeding default concepts:", err)
		return
	}

	conceptSvc := conceptService.NewConceptService(conceptRepo, vocab)
	aggregator := attendanceService.NewAggregator()
	policy := attendanceService.PayPolicy{
		PaidLeave:    cfg.Engine.PaidLeave,
		PaidHolidays: cfg.Engine.PaidHolidays,
	}
	calculatorSvc := payrollService.NewCalculatorService(
		payrollRepo,
		periodRepo,
		employeeRepo,
		attendanceRepo,
		benefitRepo,
		leaveRepo,
		conceptSvc,
		aggregator,
		policy,
		logger,
		cfg.Engine.ConflictRetries,
	)
	periodSvc := payrollService.NewPeriodService(
		periodRepo,
		payrollRepo,
		employeeRepo,
		calculatorSvc,
		conceptSvc,
		logger,
		cfg.Engine.Workers,
		cfg.Engine.EmployeeTimeout,
	)

	conceptHandler := appHTTP.NewConceptHandler(conceptSvc)
	periodHandler := appHTTP.NewPeriodHandler(periodSvc, calculatorSvc)

	router := appHTTP.NewRouter(cfg, conceptHandler, periodHandler)

	port := fmt.Sprintf(":%d", cfg.App.Port)
	fmt.Printf("Server running at http://localhost%s\n", port)
	if err := http.ListenAndServe(port, router); err != nil {
		fmt.Println("Server error:", err)
	}
}
