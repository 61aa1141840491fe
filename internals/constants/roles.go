package constants

import "fmt"

const (
	RoleStudent     = "student"
	RoleOfficer     = "scholarship_officer"
	RoleSSCMember   = "ssc_member"
	RoleChairperson = "ssc_chairperson"
	RoleAccountant  = "accountant"
	RoleAdmin       = "admin"
)

// SSC committee roles as stored in ssc_role_assignments.
const (
	SSCRoleDocumentVerifier = "document_verifier"
	SSCRoleFinancialAnalyst = "financial_analyst"
	SSCRoleAcademicReviewer = "academic_reviewer"
	SSCRoleChairperson      = "chairperson"
)

// Review stages, matching the keys of an application's stage_status.
const (
	StageDocumentVerification = "document_verification"
	StageFinancialReview      = "financial_review"
	StageAcademicReview       = "academic_review"
)

// StageForSSCRole maps a committee role to the one stage it may act on.
var StageForSSCRole = map[string]string{
	SSCRoleDocumentVerifier: StageDocumentVerification,
	SSCRoleFinancialAnalyst: StageFinancialReview,
	SSCRoleAcademicReviewer: StageAcademicReview,
}

var AllSSCRoles = []string{
	SSCRoleDocumentVerifier,
	SSCRoleFinancialAnalyst,
	SSCRoleAcademicReviewer,
	SSCRoleChairperson,
}

const (
	ErrOnlyStaffCanAccess = "only scholarship staff may access %s"
	ErrOnlyAdminCanAccess = "only administrators may access %s"
)

func RoleErrorStaff(feature string) string {
	return fmt.Sprintf(ErrOnlyStaffCanAccess, feature)
}

func RoleErrorAdmin(feature string) string {
	return fmt.Sprintf(ErrOnlyAdminCanAccess, feature)
}

// ==========================
// Grouped Role Slices
// ==========================
var (
	AllRoles = []string{
		RoleStudent,
		RoleOfficer,
		RoleSSCMember,
		RoleChairperson,
		RoleAccountant,
		RoleAdmin,
	}

	StaffRoles = []string{
		RoleOfficer,
		RoleSSCMember,
		RoleChairperson,
		RoleAccountant,
		RoleAdmin,
	}

	OfficerAndAbove = []string{
		RoleOfficer,
		RoleAdmin,
	}

	CommitteeRoles = []string{
		RoleSSCMember,
		RoleChairperson,
		RoleAdmin,
	}

	ChairOnly = []string{
		RoleChairperson,
	}

	FinanceRoles = []string{
		RoleAccountant,
		RoleAdmin,
	}

	AdminOnly = []string{
		RoleAdmin,
	}
)
