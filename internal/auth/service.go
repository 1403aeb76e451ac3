package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/willemschots/sessiongate/internal/email"
	"github.com/willemschots/sessiongate/internal/errorz"
)

// Service provides login and signup on top of a UserRepository.
// It is safe for concurrent use.
type Service struct {
	repo      UserRepository
	hasher    PasswordHasher
	validator PasswordValidator
	logger    *slog.Logger
	metrics   *Metrics

	// comparisonCred is verified against when no user was found.
	comparisonCred Credential
}

// NewService creates a new authentication service.
func NewService(repo UserRepository, hasher PasswordHasher, validator PasswordValidator, logger *slog.Logger, metrics *Metrics) (*Service, error) {
	if repo == nil || hasher == nil || validator == nil || logger == nil || metrics == nil {
		return nil, errors.New("missing service dependencies")
	}

	cred, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("failed to create comparison credential: %w", err)
	}

	return &Service{
		repo:           repo,
		hasher:         hasher,
		validator:      validator,
		logger:         logger,
		metrics:        metrics,
		comparisonCred: cred,
	}, nil
}

// Login returns the user with addr if password matches its credential.
// It fails with ErrUserNotFound or ErrIncorrectPassword, callers should not
// tell these apart in their response.
func (s *Service) Login(ctx context.Context, addr email.Address, password string) (User, error) {
	user, cred, err := s.repo.FindByEmailWithCredential(ctx, addr)
	if err != nil {
		if errors.Is(err, errorz.ErrNotFound) {
			// Verify anyway so both failures take about as long.
			_ = s.hasher.Verify(password, s.comparisonCred)

			s.logger.InfoContext(ctx, "login failed", "reason", OutcomeUnknownEmail)
			s.metrics.login(OutcomeUnknownEmail)
			return User{}, ErrUserNotFound
		}

		s.metrics.login(OutcomeError)
		return User{}, fmt.Errorf("failed to find user: %w", err)
	}

	if !s.hasher.Verify(password, cred) {
		s.logger.InfoContext(ctx, "login failed", "reason", OutcomeIncorrectPassword, "user_id", user.ID)
		s.metrics.login(OutcomeIncorrectPassword)
		return User{}, ErrIncorrectPassword
	}

	s.metrics.login(OutcomeSuccess)
	return user, nil
}

// Signup creates a user with addr and password. It fails with
// InvalidPasswordError when the password is rejected by the validator and
// with EmailAlreadyExistsError when addr is taken, also when another signup
// for addr wins a race.
func (s *Service) Signup(ctx context.Context, addr email.Address, password string) (User, error) {
	res := s.validator.Validate(password)
	if !res.Valid {
		s.metrics.signup(OutcomeInvalidPassword)
		return User{}, InvalidPasswordError{Reason: res.Reason}
	}

	cred, err := s.hasher.Hash(password)
	if err != nil {
		s.metrics.signup(OutcomeError)
		return User{}, err
	}

	exists, err := s.CheckEmailExists(ctx, addr)
	if err != nil {
		s.metrics.signup(OutcomeError)
		return User{}, err
	}

	if exists {
		s.metrics.signup(OutcomeEmailTaken)
		return User{}, EmailAlreadyExistsError{Email: addr}
	}

	user, err := s.repo.Create(ctx, addr, cred)
	if err != nil {
		if errors.Is(err, errorz.ErrConflict) {
			s.metrics.signup(OutcomeEmailTaken)
			return User{}, EmailAlreadyExistsError{Email: addr}
		}

		s.metrics.signup(OutcomeError)
		return User{}, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user signed up", "user_id", user.ID)
	s.metrics.signup(OutcomeSuccess)
	return user, nil
}

// CheckEmailExists reports whether a user with addr exists.
func (s *Service) CheckEmailExists(ctx context.Context, addr email.Address) (bool, error) {
	_, err := s.repo.FindByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, errorz.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to find user: %w", err)
	}

	return true, nil
}
