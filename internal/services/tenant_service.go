package services

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerbook/backend/internal/logger"
	"github.com/ledgerbook/backend/internal/models"
	"github.com/ledgerbook/backend/internal/store"
	"github.com/sirupsen/logrus"
)

// now returns the instant stamped on every row written by one operation.
// Postgres keeps microseconds, so finer precision would not round-trip.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

type TenantService struct {
	store store.Store
	log   *logrus.Entry
	now   func() time.Time
}

func NewTenantService(st store.Store) *TenantService {
	return &TenantService{
		store: st,
		log:   logger.Component("tenants"),
		now:   now,
	}
}

func validateCompanyName(name string) (string, error) {
	return checkText("name", name, true, models.MaxCompanyNameLength)
}

func (s *TenantService) GetCompany(ctx context.Context, companyID string) (*models.Company, error) {
	var company *models.Company
	err := s.store.RunInTx(ctx, companyID, func(ctx context.Context, tx store.Tx) error {
		var err error
		company, err = tx.GetCompany(ctx, companyID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound("company", companyID)
		}
		return err
	})
	if err != nil {
		return nil, wrapStorage("get company", err)
	}
	return company, nil
}

// RenameCompany changes the display name. CreatedAt is kept.
func (s *TenantService) RenameCompany(ctx context.Context, companyID, name string) (*models.Company, error) {
	name, err := validateCompanyName(name)
	if err != nil {
		return nil, err
	}

	var company *models.Company
	err = s.store.RunInTx(ctx, companyID, func(ctx context.Context, tx store.Tx) error {
		var err error
		company, err = tx.GetCompany(ctx, companyID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound("company", companyID)
		}
		if err != nil {
			return err
		}
		company.Name = name
		company.UpdatedAt = s.now()
		return tx.UpdateCompany(ctx, company)
	})
	if err != nil {
		return nil, wrapStorage("rename company", err)
	}

	s.log.WithField("company_id", companyID).Info("Company renamed")
	return company, nil
}
