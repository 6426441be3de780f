package payroll

import (
	"github.com/citypets/timesheet-engine/generic"
)

// AccessGate rejects submissions for restricted job types. It runs before
// any rate lookup so a denied caller learns nothing about rates.
type AccessGate struct {
	Policy AccessPolicy
}

// CanLog is true when the job type is unrestricted or employee is listed.
func (g AccessGate) CanLog(employee generic.EmployeeID, job JobType) bool {
	return g.Policy.CanLog(employee, job)
}

// Check returns an AccessDeniedError when employee may not log job.
func (g AccessGate) Check(employee generic.EmployeeID, job JobType) error {
	if !g.CanLog(employee, job) {
		return &generic.AccessDeniedError{Employee: employee, JobType: string(job)}
	}
	return nil
}
