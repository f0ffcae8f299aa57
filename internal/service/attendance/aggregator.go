package attendance

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/attendance"
	"github.com/shopspring/decimal"
)

// PayPolicy tells the aggregator which non-working statuses still count as
// paid worked days. The policy rules themselves are decided upstream.
type PayPolicy struct {
	PaidLeave    bool
	PaidHolidays bool
}

type Aggregator struct {
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate reduces an employee's attendance rows over [start, end] into a
// summary. Days without a row count as zero hours and are reported as
// warnings, never as errors: missing input must not abort a batch.
// Overtime is paid only when approved; unapproved hours are summed
// separately for reporting.
func (a *Aggregator) Aggregate(employeeID string, rows []attendance.Attendance, start, end time.Time, policy PayPolicy) (attendance.Summary, []string) {
	summary := attendance.Summary{
		EmployeeID:              employeeID,
		WorkedDays:              decimal.Zero,
		WorkedHours:             decimal.Zero,
		OvertimeHours:           decimal.Zero,
		UnapprovedOvertimeHours: decimal.Zero,
		BreakHours:              decimal.Zero,
	}

	var warnings []string
	seen := make(map[string]bool, len(rows))

	for _, row := range rows {
		day := row.Date.Format("2006-01-02")
		if row.Date.Before(start) || row.Date.After(end) {
			continue
		}
		seen[day] = true

		switch row.Status {
		case attendance.StatusPresent, attendance.StatusLate, attendance.StatusVeryLate:
			summary.WorkedDays = summary.WorkedDays.Add(decimal.NewFromInt(1))
			summary.WorkedHours = summary.WorkedHours.Add(row.WorkedHours)
		case attendance.StatusLeave:
			if policy.PaidLeave {
				summary.WorkedDays = summary.WorkedDays.Add(decimal.NewFromInt(1))
			}
		case attendance.StatusHoliday:
			if policy.PaidHolidays {
				summary.WorkedDays = summary.WorkedDays.Add(decimal.NewFromInt(1))
			}
		case attendance.StatusAbsent:
			// contributes nothing
		}

		summary.BreakHours = summary.BreakHours.Add(row.BreakHours)

		if row.OvertimeHours.IsPositive() {
			if row.IsOvertimeApproved {
				summary.OvertimeHours = summary.OvertimeHours.Add(row.OvertimeHours)
			} else {
				summary.UnapprovedOvertimeHours = summary.UnapprovedOvertimeHours.Add(row.OvertimeHours)
			}
		}
	}

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		if !seen[key] {
			warnings = append(warnings, fmt.Sprintf("employee %s: no attendance recorded for %s, counted as zero hours", employeeID, key))
		}
	}

	return summary, warnings
}
