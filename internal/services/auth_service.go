package services

import (
	"context"
	"strings"
	"sync"

	"github.com/carelink/shift-portal/internal/database"
	"github.com/carelink/shift-portal/internal/models"
	"github.com/carelink/shift-portal/internal/utils"
	"github.com/carelink/shift-portal/pkg/validator"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// AuthOptions tunes password handling
type AuthOptions struct {
	BcryptCost              int
	GeneratedPasswordLength int
}

// AuthService handles registration, sign-in and profiles for both roles
type AuthService struct {
	homes     *database.CareHomeRepository
	workers   *database.CareWorkerRepository
	sessions  *SessionService
	validator *validator.FieldValidator
	phone     *validator.PhoneValidator
	audit     *AuditService
	limiter   *RateLimitService
	logger    logrus.FieldLogger
	opts      AuthOptions

	compare   func(hash, password []byte) error
	dummyOnce sync.Once
	dummyHash []byte
}

// NewAuthService creates a new auth service
func NewAuthService(
	homes *database.CareHomeRepository,
	workers *database.CareWorkerRepository,
	sessions *SessionService,
	v *validator.FieldValidator,
	audit *AuditService,
	logger logrus.FieldLogger,
	opts AuthOptions,
) *AuthService {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.GeneratedPasswordLength == 0 {
		opts.GeneratedPasswordLength = 12
	}
	return &AuthService{
		homes:     homes,
		workers:   workers,
		sessions:  sessions,
		validator: v,
		phone:     validator.NewPhoneValidator(),
		audit:     audit,
		logger:    logger,
		opts:      opts,
		compare:   bcrypt.CompareHashAndPassword,
	}
}

// UseRateLimiter enables sign-in throttling
func (s *AuthService) UseRateLimiter(limiter *RateLimitService) {
	s.limiter = limiter
}

// hashPassword hashes password, generating one first when it is empty.
// generated is only set in that case.
func (s *AuthService) hashPassword(password string) (hash, generated string, err error) {
	if password == "" {
		generated, err = utils.GeneratePassword(s.opts.GeneratedPasswordLength)
		if err != nil {
			return "", "", err
		}
		password = generated
	}

	b, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return "", "", err
	}
	return string(b), generated, nil
}

// checkPassword reports whether password matches acct. A missing account is
// compared against a throwaway hash of the same cost so unknown emails take as
// long as wrong passwords.
func (s *AuthService) checkPassword(acct *account, password string) bool {
	if acct == nil {
		s.dummyOnce.Do(func() {
			s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("unused-sign-in-password"), s.opts.BcryptCost)
		})
		_ = s.compare(s.dummyHash, []byte(password))
		return false
	}
	return s.compare([]byte(acct.passwordHash), []byte(password)) == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterCareHome creates a care home account
func (s *AuthService) RegisterCareHome(ctx context.Context, req models.RegisterCareHomeRequest, client models.ClientInfo) (*models.RegistrationResult, error) {
	req.ManagerEmail = normalizeEmail(req.ManagerEmail)
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}

	hash, generated, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	home, err := s.homes.Create(ctx, &models.CareHome{
		Name:               strings.TrimSpace(req.Name),
		BusinessType:       req.BusinessType,
		RegistrationNumber: req.RegistrationNumber,
		VATNumber:          models.NewNullString(req.VATNumber),
		BusinessAddress:    req.BusinessAddress,
		Postcode:           strings.ToUpper(strings.TrimSpace(req.Postcode)),
		CQCNumber:          models.NewNullString(req.CQCNumber),
		CQCRating:          models.NewNullString(req.CQCRating),
		LastInspectionDate: models.NewNullString(req.LastInspectionDate),
		InsuranceExpiry:    models.NewNullString(req.InsuranceExpiry),
		KeyPolicies:        req.KeyPolicies,
		ManagerName:        strings.TrimSpace(req.ManagerName),
		ManagerEmail:       req.ManagerEmail,
		ManagerPhone:       s.phone.Sanitize(req.ManagerPhone),
		ManagerNMC:         models.NewNullString(req.ManagerNMC),
		TermsAgreed:        req.TermsAgreed,
		PoliciesAgreed:     req.PoliciesAgreed,
		UpdatesAgreed:      req.UpdatesAgreed,
		PasswordHash:       hash,
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.logger.WithField("care_home_id", home.ID).Info("Care home registered")
	s.audit.Log(ctx, AuditEvent{
		Action:     "care_home_registered",
		EntityType: "care_home",
		EntityID:   home.ID,
		Client:     client,
	})

	return &models.RegistrationResult{
		AccountID:         home.ID,
		Role:              models.RoleCareHome,
		Email:             home.ManagerEmail,
		GeneratedPassword: generated,
	}, nil
}

// RegisterWorker creates a care worker account
func (s *AuthService) RegisterWorker(ctx context.Context, req models.RegisterWorkerRequest, client models.ClientInfo) (*models.RegistrationResult, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}

	hash, generated, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	nokPhone := req.NOKPhone
	if nokPhone != "" {
		nokPhone = s.phone.Sanitize(nokPhone)
	}

	worker, err := s.workers.Create(ctx, &models.CareWorker{
		Title:             req.Title,
		FirstName:         strings.TrimSpace(req.FirstName),
		LastName:          strings.TrimSpace(req.LastName),
		DateOfBirth:       models.NewNullString(req.DateOfBirth),
		Email:             req.Email,
		Phone:             s.phone.Sanitize(req.Phone),
		Address:           req.Address,
		Nationality:       req.Nationality,
		NOKFullName:       req.NOKFullName,
		NOKEmail:          req.NOKEmail,
		NOKPhone:          nokPhone,
		NOKRelationship:   req.NOKRelationship,
		PreferredRole:     req.PreferredRole,
		YearsExperience:   req.YearsExperience,
		Availability:      req.Availability,
		Transport:         req.Transport,
		Qualifications:    pq.StringArray(req.Qualifications),
		NMCPin:            models.NewNullString(req.NMCPin),
		NationalInsurance: strings.ToUpper(strings.ReplaceAll(req.NationalInsurance, " ", "")),
		TermsAgreed:       req.TermsAgreed,
		PrivacyAgreed:     req.PrivacyAgreed,
		PasswordHash:      hash,
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.logger.WithField("worker_id", worker.ID).Info("Care worker registered")
	s.audit.Log(ctx, AuditEvent{
		Action:     "care_worker_registered",
		EntityType: "care_worker",
		EntityID:   worker.ID,
		Client:     client,
	})

	return &models.RegistrationResult{
		AccountID:         worker.ID,
		Role:              models.RoleCareWorker,
		Email:             worker.Email,
		GeneratedPassword: generated,
	}, nil
}

// account is the part of either account type sign-in needs
type account struct {
	identity     models.Identity
	passwordHash string
}

func (s *AuthService) findAccount(ctx context.Context, role models.Role, email string) (*account, error) {
	switch role {
	case models.RoleCareHome:
		home, err := s.homes.GetByEmail(ctx, email)
		if err != nil || home == nil {
			return nil, err
		}
		return &account{
			identity:     models.Identity{Role: role, AccountID: home.ID, Email: home.ManagerEmail, Name: home.Name},
			passwordHash: home.PasswordHash,
		}, nil
	case models.RoleCareWorker:
		worker, err := s.workers.GetByEmail(ctx, email)
		if err != nil || worker == nil {
			return nil, err
		}
		return &account{
			identity:     models.Identity{Role: role, AccountID: worker.ID, Email: worker.Email, Name: worker.FullName()},
			passwordHash: worker.PasswordHash,
		}, nil
	default:
		return nil, ErrForbidden
	}
}

func (s *AuthService) findAccountByID(ctx context.Context, id models.Identity) (*account, error) {
	switch id.Role {
	case models.RoleCareHome:
		home, err := s.homes.GetByID(ctx, id.AccountID)
		if err != nil || home == nil {
			return nil, err
		}
		return &account{identity: id, passwordHash: home.PasswordHash}, nil
	case models.RoleCareWorker:
		worker, err := s.workers.GetByID(ctx, id.AccountID)
		if err != nil || worker == nil {
			return nil, err
		}
		return &account{identity: id, passwordHash: worker.PasswordHash}, nil
	default:
		return nil, ErrForbidden
	}
}

// SignIn checks credentials for role and opens a session
func (s *AuthService) SignIn(ctx context.Context, role models.Role, req models.SignInRequest, client models.ClientInfo) (*models.AuthTokens, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	email := req.Email

	if err := s.limiter.CheckSignIn(ctx, email, client.IPAddress); err != nil {
		return nil, err
	}

	acct, err := s.findAccount(ctx, role, email)
	if err != nil {
		return nil, err
	}
	if !s.checkPassword(acct, req.Password) {
		s.audit.LogSignIn(ctx, nil, role, email, client, false)
		if err := s.limiter.RecordFailure(ctx, email, client.IPAddress); err != nil {
			s.logger.WithError(err).Warn("Failed to record sign-in attempt")
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.limiter.Reset(ctx, email); err != nil {
		s.logger.WithError(err).Warn("Failed to reset sign-in attempts")
	}

	tokens, err := s.sessions.Set(ctx, acct.identity, client)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"account_id": tokens.Identity.AccountID,
		"role":       role,
		"session_id": tokens.Identity.SessionID,
	}).Info("Signed in")
	s.audit.LogSignIn(ctx, &tokens.Identity, role, email, client, true)

	return tokens, nil
}

// Refresh exchanges a refresh token for new tokens
func (s *AuthService) Refresh(ctx context.Context, req models.RefreshTokenRequest) (*models.AuthTokens, error) {
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	return s.sessions.Refresh(ctx, req.RefreshToken)
}

// SignOut ends the caller's session
func (s *AuthService) SignOut(ctx context.Context, id models.Identity) error {
	if id.SessionID == uuid.Nil {
		return ErrUnauthenticated
	}
	if err := s.sessions.Clear(ctx, id.SessionID); err != nil {
		return err
	}
	s.audit.LogEntity(ctx, id, "sign_out", "session", id.SessionID, nil)
	return nil
}

// ChangePassword replaces the caller's password and signs out their other sessions
func (s *AuthService) ChangePassword(ctx context.Context, id models.Identity, req models.ChangePasswordRequest) error {
	if id.AccountID == uuid.Nil {
		return ErrUnauthenticated
	}
	if err := validate(s.validator, req); err != nil {
		return err
	}

	acct, err := s.findAccountByID(ctx, id)
	if err != nil {
		return err
	}
	if acct == nil {
		return ErrNotFound
	}
	if !s.checkPassword(acct, req.CurrentPassword) {
		return ErrInvalidCredentials
	}

	hash, _, err := s.hashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	if id.IsCareHome() {
		err = s.homes.UpdatePassword(ctx, id.AccountID, hash)
	} else {
		err = s.workers.UpdatePassword(ctx, id.AccountID, hash)
	}
	if err != nil {
		return err
	}

	revoked, err := s.sessions.RevokeOthers(ctx, id)
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"account_id":       id.AccountID,
		"revoked_sessions": revoked,
	}).Info("Password changed")
	s.audit.LogEntity(ctx, id, "password_changed", string(id.Role), id.AccountID,
		map[string]interface{}{"revoked_sessions": revoked})

	return nil
}

// CareHomeProfile returns the calling care home's account
func (s *AuthService) CareHomeProfile(ctx context.Context, id models.Identity) (*models.CareHome, error) {
	if err := requireCareHome(id); err != nil {
		return nil, err
	}
	home, err := s.homes.GetByID(ctx, id.AccountID)
	if err != nil {
		return nil, err
	}
	if home == nil {
		return nil, ErrNotFound
	}
	return home, nil
}

// UpdateCareHomeProfile applies the set fields of req to the calling care home
func (s *AuthService) UpdateCareHomeProfile(ctx context.Context, id models.Identity, req models.UpdateCareHomeProfileRequest) (*models.CareHome, error) {
	if err := requireCareHome(id); err != nil {
		return nil, err
	}
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	if req.ManagerPhone != nil {
		sanitized := s.phone.Sanitize(*req.ManagerPhone)
		req.ManagerPhone = &sanitized
	}

	home, err := s.homes.UpdateProfile(ctx, id.AccountID, &req)
	if err != nil {
		return nil, err
	}
	if home == nil {
		return nil, ErrNotFound
	}

	if req.Name != nil && home.Name != id.Name {
		if err := s.sessions.Rename(ctx, id.Role, id.AccountID, home.Name); err != nil {
			return nil, err
		}
	}
	s.audit.LogEntity(ctx, id, "profile_updated", "care_home", id.AccountID, nil)

	return home, nil
}

// WorkerProfile returns the calling worker's account
func (s *AuthService) WorkerProfile(ctx context.Context, id models.Identity) (*models.CareWorker, error) {
	if err := requireWorker(id); err != nil {
		return nil, err
	}
	worker, err := s.workers.GetByID(ctx, id.AccountID)
	if err != nil {
		return nil, err
	}
	if worker == nil {
		return nil, ErrNotFound
	}
	return worker, nil
}

// UpdateWorkerProfile applies the set fields of req to the calling worker
func (s *AuthService) UpdateWorkerProfile(ctx context.Context, id models.Identity, req models.UpdateWorkerProfileRequest) (*models.CareWorker, error) {
	if err := requireWorker(id); err != nil {
		return nil, err
	}
	if err := validate(s.validator, req); err != nil {
		return nil, err
	}
	for _, p := range []**string{&req.Phone, &req.NOKPhone} {
		if *p != nil {
			sanitized := s.phone.Sanitize(**p)
			*p = &sanitized
		}
	}

	worker, err := s.workers.UpdateProfile(ctx, id.AccountID, &req)
	if err != nil {
		return nil, err
	}
	if worker == nil {
		return nil, ErrNotFound
	}
	s.audit.LogEntity(ctx, id, "profile_updated", "care_worker", id.AccountID, nil)

	return worker, nil
}
