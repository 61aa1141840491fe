package model

import "beasiswaku_backend/internals/constants"

type ApplicationStatus string

const (
	StatusDraft                       ApplicationStatus = "draft"
	StatusSubmitted                   ApplicationStatus = "submitted"
	StatusUnderReview                 ApplicationStatus = "under_review"
	StatusDocumentsReviewed           ApplicationStatus = "documents_reviewed"
	StatusForCompliance               ApplicationStatus = "for_compliance"
	StatusApprovedPendingVerification ApplicationStatus = "approved_pending_verification"
	StatusEnrollmentVerified          ApplicationStatus = "enrollment_verified"
	StatusInterviewScheduled          ApplicationStatus = "interview_scheduled"
	StatusInterviewCompleted          ApplicationStatus = "interview_completed"
	StatusEndorsedToSSC               ApplicationStatus = "endorsed_to_ssc"
	StatusSSCDocumentVerification     ApplicationStatus = "ssc_document_verification"
	StatusSSCFinancialReview          ApplicationStatus = "ssc_financial_review"
	StatusSSCAcademicReview           ApplicationStatus = "ssc_academic_review"
	StatusSSCFinalApproval            ApplicationStatus = "ssc_final_approval"
	StatusApproved                    ApplicationStatus = "approved"
	StatusProcessing                  ApplicationStatus = "processing"
	StatusDisbursed                   ApplicationStatus = "disbursed"
	StatusRejected                    ApplicationStatus = "rejected"
	StatusWithdrawn                   ApplicationStatus = "withdrawn"
)

var AllStatuses = []ApplicationStatus{
	StatusDraft,
	StatusSubmitted,
	StatusUnderReview,
	StatusDocumentsReviewed,
	StatusForCompliance,
	StatusApprovedPendingVerification,
	StatusEnrollmentVerified,
	StatusInterviewScheduled,
	StatusInterviewCompleted,
	StatusEndorsedToSSC,
	StatusSSCDocumentVerification,
	StatusSSCFinancialReview,
	StatusSSCAcademicReview,
	StatusSSCFinalApproval,
	StatusApproved,
	StatusProcessing,
	StatusDisbursed,
	StatusRejected,
	StatusWithdrawn,
}

// SSCReviewStatuses make up the parallel review super-state. Only
// endorsed_to_ssc is ever written; the ssc_* values are accepted from
// older rows and treated the same.
var SSCReviewStatuses = []ApplicationStatus{
	StatusEndorsedToSSC,
	StatusSSCDocumentVerification,
	StatusSSCFinancialReview,
	StatusSSCAcademicReview,
}

func (s ApplicationStatus) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s ApplicationStatus) Terminal() bool {
	return s == StatusRejected || s == StatusWithdrawn || s == StatusDisbursed
}

// InSSCReview reports membership in the parallel review super-state.
func (s ApplicationStatus) InSSCReview() bool {
	for _, v := range SSCReviewStatuses {
		if v == s {
			return true
		}
	}
	return false
}

/* =========================================================
   SSC stages
========================================================= */

type StageName string

const (
	StageDocumentVerification StageName = constants.StageDocumentVerification
	StageFinancialReview      StageName = constants.StageFinancialReview
	StageAcademicReview       StageName = constants.StageAcademicReview
)

var AllStages = []StageName{StageDocumentVerification, StageFinancialReview, StageAcademicReview}

func (s StageName) Valid() bool {
	for _, v := range AllStages {
		if v == s {
			return true
		}
	}
	return false
}

type StageOutcome string

const (
	StagePending           StageOutcome = "pending"
	StageApproved          StageOutcome = "approved"
	StageRejected          StageOutcome = "rejected"
	StageRevisionRequested StageOutcome = "revision_requested"
)
