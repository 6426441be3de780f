package payroll

import (
	"github.com/citypets/timesheet-engine/generic"
)

type Role string

const (
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

// Identity is what the identity provider hands over. It is trusted as is.
type Identity struct {
	UserID   string
	Role     Role
	Employee generic.EmployeeID
}

func (id Identity) IsAdmin() bool { return id.Role == RoleAdmin }

// CanActFor reports whether the caller may submit or read for employee.
func (id Identity) CanActFor(employee generic.EmployeeID) bool {
	return id.IsAdmin() || (id.Employee != "" && id.Employee == employee)
}

// Actor is the name written to audit records.
func (id Identity) Actor() string {
	if id.UserID != "" {
		return id.UserID
	}
	return string(id.Employee)
}

func requireAdmin(id Identity) error {
	if !id.IsAdmin() {
		return generic.ErrForbidden
	}
	return nil
}
