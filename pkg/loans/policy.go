package loans

import "school-library-backend/pkg/models"

// CanTransition decides whether actor may drive loan to target. Administrative
// transitions require an admin role scoped to the book's school (or super
// admin); the return transition is also open to the loan's owner.
func CanTransition(actor *models.User, loan *models.Loan, bookSchoolUid, target string) bool {
	admin := isScopedAdmin(actor, bookSchoolUid)
	if target == models.LoanReturned {
		return admin || loan.UserUid == actor.UserUid
	}
	return admin
}

// CanListAll decides whether actor may list loans beyond their own.
func CanListAll(actor *models.User) bool {
	switch actor.Role {
	case models.RoleSuperAdmin, models.RoleSchoolAdmin, models.RoleLibrarian:
		return true
	}
	return false
}

func isScopedAdmin(actor *models.User, schoolUid string) bool {
	if actor.Role == models.RoleSuperAdmin {
		return true
	}
	if actor.Role == models.RoleSchoolAdmin || actor.Role == models.RoleLibrarian {
		return actor.SchoolUid != "" && actor.SchoolUid == schoolUid
	}
	return false
}
