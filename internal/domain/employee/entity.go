package employee

import (
	"time"

	"github.com/shopspring/decimal"
)

// Employee is the roster input contract. Employee CRUD lives in the
// employee-management service; the engine only reads these fields.
type Employee struct {
	ID               string
	EmployeeCode     string
	FullName         string
	HireDate         time.Time
	ResignationDate  *time.Time
	EmploymentStatus EmploymentStatus
	BaseSalary       decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type EmploymentStatus string

const (
	EmploymentStatusActive   EmploymentStatus = "active"
	EmploymentStatusInactive EmploymentStatus = "inactive"
	EmploymentStatusResigned EmploymentStatus = "resigned"
)
