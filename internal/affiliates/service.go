package affiliates

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/raghavbatra/bazaario-backend/pkg/db"
	"github.com/raghavbatra/bazaario-backend/pkg/db/models"
	"github.com/raghavbatra/bazaario-backend/pkg/enums"
	pkgerrors "github.com/raghavbatra/bazaario-backend/pkg/errors"
)

const (
	referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	referralCodeLength   = 8
	maxCodeAttempts      = 5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages enrollment into the referral program.
type Service interface {
	Enroll(ctx context.Context, input EnrollInput) (*models.Affiliate, error)
}

// EnrollInput carries the data needed to enroll a user.
type EnrollInput struct {
	UserID       uuid.UUID
	ReferralCode string
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds an affiliate service.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, errors.New("affiliate repository required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// Enroll creates an affiliate record, optionally linked to the referrer whose
// code was supplied. Self-referral and referral chains that would loop back
// within the paid depth are rejected up front so the settlement engine never
// has to defend against cycles.
func (s *service) Enroll(ctx context.Context, input EnrollInput) (*models.Affiliate, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	var created *models.Affiliate
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if existing, err := repo.FindByUserID(ctx, input.UserID); err == nil && existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "user already enrolled")
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check enrollment")
		}

		var parentID *uuid.UUID
		if code := strings.TrimSpace(input.ReferralCode); code != "" {
			parent, err := repo.FindByReferralCode(ctx, code)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeValidation, "unknown referral code")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load referrer")
			}
			if parent.UserID == input.UserID {
				return pkgerrors.New(pkgerrors.CodeValidation, "self-referral is not allowed")
			}
			if err := s.checkChain(ctx, repo, parent, input.UserID); err != nil {
				return err
			}
			parentID = &parent.ID
		}

		affiliate := &models.Affiliate{
			UserID:   input.UserID,
			ParentID: parentID,
			IsActive: true,
		}

		for attempt := 0; ; attempt++ {
			affiliate.ReferralCode = generateReferralCode()
			_, err := repo.Create(ctx, affiliate)
			if err == nil {
				break
			}
			if dbpkg.IsUniqueViolation(err, "referral_code") && attempt < maxCodeAttempts {
				continue
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create affiliate")
		}

		created = affiliate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// checkChain walks the paid depth upward from the referrer and rejects chains
// that already contain the enrolling user.
func (s *service) checkChain(ctx context.Context, repo Repository, parent *models.Affiliate, userID uuid.UUID) error {
	current := parent
	for level := 1; level < enums.MaxCommissionDepth; level++ {
		if current.ParentID == nil {
			return nil
		}
		next, err := repo.FindByID(ctx, *current.ParentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "walk referral chain")
		}
		if next.UserID == userID {
			return pkgerrors.New(pkgerrors.CodeValidation, "referral chain would form a cycle")
		}
		current = next
	}
	return nil
}

func generateReferralCode() string {
	var sb strings.Builder
	sb.Grow(referralCodeLength)
	max := big.NewInt(int64(len(referralCodeAlphabet)))
	for i := 0; i < referralCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken
			return fmt.Sprintf("%.8s", strings.ToUpper(uuid.NewString()))
		}
		sb.WriteByte(referralCodeAlphabet[n.Int64()])
	}
	return sb.String()
}
