package attendance

import (
	"time"

	"github.com/shopspring/decimal"
)

type AttendanceStatus string

const (
	StatusPresent  AttendanceStatus = "present"
	StatusAbsent   AttendanceStatus = "absent"
	StatusLate     AttendanceStatus = "late"
	StatusVeryLate AttendanceStatus = "very_late"
	StatusLeave    AttendanceStatus = "leave"
	StatusHoliday  AttendanceStatus = "holiday"
)

// Attendance is one employee-day, unique per (employee_id, date).
type Attendance struct {
	ID                 string
	EmployeeID         string
	Date               time.Time
	WorkedHours        decimal.Decimal
	OvertimeHours      decimal.Decimal
	BreakHours         decimal.Decimal
	IsOvertimeApproved bool
	Status             AttendanceStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Summary is the reduction of a period's attendance rows for one employee.
// UnapprovedOvertimeHours is informational only and never paid.
type Summary struct {
	EmployeeID              string
	WorkedDays              decimal.Decimal
	WorkedHours             decimal.Decimal
	OvertimeHours           decimal.Decimal
	UnapprovedOvertimeHours decimal.Decimal
	BreakHours              decimal.Decimal
}
