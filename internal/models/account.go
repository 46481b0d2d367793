package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CareHome is a registered employer account
type CareHome struct {
	ID                 uuid.UUID  `json:"care_home_id" db:"id"`
	Name               string     `json:"care_home_name" db:"name"`
	BusinessType       string     `json:"business_type" db:"business_type"`
	RegistrationNumber string     `json:"registration_number" db:"registration_number"`
	VATNumber          NullString `json:"vat_number" db:"vat_number"`
	BusinessAddress    string     `json:"business_address" db:"business_address"`
	Postcode           string     `json:"postcode" db:"postcode"`
	CQCNumber          NullString `json:"cqc_number" db:"cqc_number"`
	CQCRating          NullString `json:"cqc_rating" db:"cqc_rating"`
	LastInspectionDate NullString `json:"last_inspection_date" db:"last_inspection_date"`
	InsuranceExpiry    NullString `json:"insurance_expiry" db:"insurance_expiry"`
	KeyPolicies        string     `json:"key_policies" db:"key_policies"`
	ManagerName        string     `json:"manager_name" db:"manager_name"`
	ManagerEmail       string     `json:"manager_email" db:"manager_email"`
	ManagerPhone       string     `json:"manager_phone" db:"manager_phone"`
	ManagerNMC         NullString `json:"manager_nmc" db:"manager_nmc"`
	TermsAgreed        bool       `json:"terms_agreed" db:"terms_agreed"`
	PoliciesAgreed     bool       `json:"policies_agreed" db:"policies_agreed"`
	UpdatesAgreed      bool       `json:"updates_agreed" db:"updates_agreed"`
	PasswordHash       string     `json:"-" db:"password_hash"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// CareWorker is a registered worker account
type CareWorker struct {
	ID                uuid.UUID      `json:"worker_id" db:"id"`
	Title             string         `json:"title" db:"title"`
	FirstName         string         `json:"first_name" db:"first_name"`
	LastName          string         `json:"last_name" db:"last_name"`
	DateOfBirth       NullString     `json:"date_of_birth" db:"date_of_birth"`
	Email             string         `json:"email" db:"email"`
	Phone             string         `json:"phone" db:"phone"`
	Address           string         `json:"address" db:"address"`
	Nationality       string         `json:"nationality" db:"nationality"`
	NOKFullName       string         `json:"nok_full_name" db:"nok_full_name"`
	NOKEmail          string         `json:"nok_email" db:"nok_email"`
	NOKPhone          string         `json:"nok_phone" db:"nok_phone"`
	NOKRelationship   string         `json:"nok_relationship" db:"nok_relationship"`
	PreferredRole     string         `json:"preferred_role" db:"preferred_role"`
	YearsExperience   int            `json:"years_experience" db:"years_experience"`
	Availability      string         `json:"availability" db:"availability"`
	Transport         string         `json:"transport" db:"transport"`
	Qualifications    pq.StringArray `json:"qualifications" db:"qualifications"`
	NMCPin            NullString     `json:"nmc_pin" db:"nmc_pin"`
	NationalInsurance string         `json:"national_insurance" db:"national_insurance"`
	TermsAgreed       bool           `json:"terms_agreed" db:"terms_agreed"`
	PrivacyAgreed     bool           `json:"privacy_agreed" db:"privacy_agreed"`
	PasswordHash      string         `json:"-" db:"password_hash"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
}

// FullName returns "First Last"
func (w *CareWorker) FullName() string {
	return strings.TrimSpace(w.FirstName + " " + w.LastName)
}

// RegisterCareHomeRequest is the care home registration form
type RegisterCareHomeRequest struct {
	Name               string `json:"care_home_name" validate:"required,max=200"`
	BusinessType       string `json:"business_type" validate:"max=100"`
	RegistrationNumber string `json:"registration_number" validate:"max=50"`
	VATNumber          string `json:"vat_number" validate:"max=20"`
	BusinessAddress    string `json:"business_address" validate:"required,max=500"`
	Postcode           string `json:"postcode" validate:"required,max=10"`
	CQCNumber          string `json:"cqc_number" validate:"max=20"`
	CQCRating          string `json:"cqc_rating" validate:"omitempty,oneof=outstanding good requires_improvement inadequate"`
	LastInspectionDate string `json:"last_inspection_date" validate:"omitempty,isodate"`
	InsuranceExpiry    string `json:"insurance_expiry" validate:"omitempty,isodate"`
	KeyPolicies        string `json:"key_policies" validate:"max=5000"`
	ManagerName        string `json:"manager_name" validate:"required,max=200"`
	ManagerEmail       string `json:"manager_email" validate:"required,email"`
	ManagerPhone       string `json:"manager_phone" validate:"required,ukphone"`
	ManagerNMC         string `json:"manager_nmc" validate:"max=20"`
	TermsAgreed        bool   `json:"terms_agreed" validate:"required"`
	PoliciesAgreed     bool   `json:"policies_agreed" validate:"required"`
	UpdatesAgreed      bool   `json:"updates_agreed"`
	Password           string `json:"password" validate:"omitempty,min=8,max=72"`
}

// RegisterWorkerRequest is the care worker registration form
type RegisterWorkerRequest struct {
	Title             string   `json:"title" validate:"max=10"`
	FirstName         string   `json:"first_name" validate:"required,max=100"`
	LastName          string   `json:"last_name" validate:"required,max=100"`
	DateOfBirth       string   `json:"date_of_birth" validate:"omitempty,isodate"`
	Email             string   `json:"email" validate:"required,email"`
	Phone             string   `json:"phone" validate:"required,ukphone"`
	Address           string   `json:"address" validate:"max=500"`
	Nationality       string   `json:"nationality" validate:"max=100"`
	NOKFullName       string   `json:"nok_full_name" validate:"max=200"`
	NOKEmail          string   `json:"nok_email" validate:"omitempty,email"`
	NOKPhone          string   `json:"nok_phone" validate:"omitempty,ukphone"`
	NOKRelationship   string   `json:"nok_relationship" validate:"max=50"`
	PreferredRole     string   `json:"preferred_role" validate:"omitempty,shiftrole"`
	YearsExperience   int      `json:"years_experience" validate:"min=0,max=60"`
	Availability      string   `json:"availability" validate:"max=200"`
	Transport         string   `json:"transport" validate:"max=100"`
	Qualifications    []string `json:"qualifications" validate:"max=30,dive,required,max=200"`
	NMCPin            string   `json:"nmc_pin" validate:"max=20"`
	NationalInsurance string   `json:"national_insurance" validate:"max=13"`
	TermsAgreed       bool     `json:"terms_agreed" validate:"required"`
	PrivacyAgreed     bool     `json:"privacy_agreed" validate:"required"`
	Password          string   `json:"password" validate:"omitempty,min=8,max=72"`
}

// UpdateCareHomeProfileRequest holds editable care home settings; nil fields are left unchanged
type UpdateCareHomeProfileRequest struct {
	Name            *string `json:"care_home_name" validate:"omitempty,min=1,max=200"`
	BusinessAddress *string `json:"business_address" validate:"omitempty,max=500"`
	Postcode        *string `json:"postcode" validate:"omitempty,max=10"`
	KeyPolicies     *string `json:"key_policies" validate:"omitempty,max=5000"`
	ManagerName     *string `json:"manager_name" validate:"omitempty,min=1,max=200"`
	ManagerPhone    *string `json:"manager_phone" validate:"omitempty,ukphone"`
	UpdatesAgreed   *bool   `json:"updates_agreed"`
}

// UpdateWorkerProfileRequest holds editable worker settings; nil fields are left unchanged
type UpdateWorkerProfileRequest struct {
	Phone           *string   `json:"phone" validate:"omitempty,ukphone"`
	Address         *string   `json:"address" validate:"omitempty,max=500"`
	PreferredRole   *string   `json:"preferred_role" validate:"omitempty,shiftrole"`
	YearsExperience *int      `json:"years_experience" validate:"omitempty,min=0,max=60"`
	Availability    *string   `json:"availability" validate:"omitempty,max=200"`
	Transport       *string   `json:"transport" validate:"omitempty,max=100"`
	Qualifications  *[]string `json:"qualifications" validate:"omitempty,max=30,dive,required,max=200"`
	NOKFullName     *string   `json:"nok_full_name" validate:"omitempty,max=200"`
	NOKEmail        *string   `json:"nok_email" validate:"omitempty,email"`
	NOKPhone        *string   `json:"nok_phone" validate:"omitempty,ukphone"`
	NOKRelationship *string   `json:"nok_relationship" validate:"omitempty,max=50"`
}

// ChangePasswordRequest replaces the caller's password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72,nefield=CurrentPassword"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

// SignInRequest is submitted to either sign-in endpoint
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegistrationResult is returned once after registration. Password is only
// populated when the server generated it.
type RegistrationResult struct {
	AccountID         uuid.UUID `json:"account_id"`
	Role              Role      `json:"role"`
	Email             string    `json:"email"`
	GeneratedPassword string    `json:"generated_password,omitempty"`
}
