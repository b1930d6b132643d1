package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerbook/backend/internal/cache"
	"github.com/ledgerbook/backend/internal/logger"
	"github.com/ledgerbook/backend/internal/models"
	"github.com/ledgerbook/backend/internal/store"
	"github.com/sirupsen/logrus"
)

type PartnerService struct {
	store store.Store
	cache *cache.Cache
	log   *logrus.Entry
	now   func() time.Time
}

func NewPartnerService(st store.Store, c *cache.Cache) *PartnerService {
	return &PartnerService{
		store: st,
		cache: c,
		log:   logger.Component("partners"),
		now:   now,
	}
}

// CreatePartnerRequest represents the partner creation payload
// @Description Partner creation request
type CreatePartnerRequest struct {
	Type models.PartnerType `json:"type" swaggertype:"string" enums:"Customer,Vendor" example:"Customer"`
	Name string             `json:"name" validate:"required,max=200" example:"Globex Ltd"`
}

// UpdatePartnerRequest represents a partial partner update
// @Description Partner update request
type UpdatePartnerRequest struct {
	Type *models.PartnerType `json:"type,omitempty" swaggertype:"string" enums:"Customer,Vendor"`
	Name *string             `json:"name,omitempty" validate:"omitempty,max=200"`
}

func (s *PartnerService) CreatePartner(ctx context.Context, companyID string, req CreatePartnerRequest) (*models.Partner, error) {
	if !req.Type.Valid() {
		return nil, invalid("type", "must be Customer or Vendor")
	}
	name, err := checkText("name", req.Name, true, models.MaxPartnerNameLength)
	if err != nil {
		return nil, err
	}

	ts := s.now()
	partner := &models.Partner{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		Type:      req.Type,
		Name:      name,
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	err = s.store.RunInTx(ctx, companyID, func(ctx context.Context, tx store.Tx) error {
		err := tx.InsertPartner(ctx, partner)
		if errors.Is(err, store.ErrForeignKey) {
			return notFound("company", companyID)
		}
		return err
	})
	if err != nil {
		return nil, wrapStorage("create partner", err)
	}

	s.cache.SetPartner(ctx, partner)
	s.log.WithFields(logrus.Fields{"company_id": companyID, "partner_id": partner.ID}).Info("Partner created")
	return partner, nil
}

func getPartner(ctx context.Context, tx store.Tx, companyID, partnerID string) (*models.Partner, error) {
	p, err := tx.GetPartner(ctx, companyID, partnerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("partner", partnerID)
	}
	return p, err
}

// ResolvePartner returns the partner only if it belongs to companyID.
func (s *PartnerService) ResolvePartner(ctx context.Context, companyID, partnerID string) (*models.Partner, error) {
	if p, ok := s.cache.GetPartner(ctx, companyID, partnerID); ok {
		return p, nil
	}

	var partner *models.Partner
	err := s.store.RunInTx(ctx, companyID, func(ctx context.Context, tx store.Tx) error {
		var err error
		partner, err = getPartner(ctx, tx, companyID, partnerID)
		return err
	})
	if err != nil {
		return nil, wrapStorage("resolve partner", err)
	}

	s.cache.SetPartner(ctx, partner)
	return partner, nil
}

// ListPartners returns the company's partners ordered by name, optionally
// restricted to one type.
func (s *PartnerService) ListPartners(ctx context.Context, companyID string, partnerType *models.PartnerType) ([]models.Partner, error) {
	if partnerType != nil && !partnerType.Valid() {
		return nil, invalid("type", "must be Customer or Vendor")
	}

	var partners []models.Partner
	err := s.store.RunInTx(ctx, companyID, func(ctx context.Context, tx store.Tx) error {
		var err error
		partners, err = tx.ListPartners(ctx, companyID, partnerType)
		return err
	})
	if err != nil {
		return nil, wrapStorage("list partners", err)
	}
	return partners, nil
}

func (s *PartnerService) UpdatePartner(ctx context.Context, companyID, partnerID string, req UpdatePartnerRequest) (*models.Partner, error) {
	if req.Type != nil && !req.Type.Valid() {
		return nil, invalid("type", "must be Customer or Vendor")
	}
	var name *string
	if req.Name != nil {
		v, err := checkText("name", *req.Name, true, models.MaxPartnerNameLength)
		if err != nil {
			return nil, err
		}
		name = &v
	}

	var partner *models.Partner
	err := s.store.RunInTx(ctx, companyID, func(ctx context.Context, tx store.Tx) error {
		var err error
		partner, err = getPartner(ctx, tx, companyID, partnerID)
		if err != nil {
			return err
		}
		if req.Type != nil {
			partner.Type = *req.Type
		}
		if name != nil {
			partner.Name = *name
		}
		partner.UpdatedAt = s.now()

		err = tx.UpdatePartner(ctx, partner)
		if errors.Is(err, store.ErrNotFound) {
			return notFound("partner", partnerID)
		}
		return err
	})
	if err != nil {
		return nil, wrapStorage("update partner", err)
	}

	s.cache.InvalidatePartner(ctx, companyID, partnerID)
	s.log.WithFields(logrus.Fields{"company_id": companyID, "partner_id": partnerID}).Info("Partner updated")
	return partner, nil
}

// DeletePartner never blocks on references: entry lines pointing at the
// partner lose the reference first.
func (s *PartnerService) DeletePartner(ctx context.Context, companyID, partnerID string) error {
	var touched []int64
	err := s.store.RunInTx(ctx, companyID, func(ctx context.Context, tx store.Tx) error {
		if _, err := getPartner(ctx, tx, companyID, partnerID); err != nil {
			return err
		}

		var err error
		touched, err = tx.UnlinkPartnerLines(ctx, companyID, partnerID, s.now())
		if err != nil {
			return err
		}

		err = tx.DeletePartner(ctx, companyID, partnerID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound("partner", partnerID)
		}
		return err
	})
	if err != nil {
		return wrapStorage("delete partner", err)
	}

	s.cache.InvalidatePartner(ctx, companyID, partnerID)
	for _, id := range touched {
		s.cache.InvalidateTransaction(ctx, companyID, id)
	}
	s.log.WithFields(logrus.Fields{"company_id": companyID, "partner_id": partnerID, "unlinked_transactions": len(touched)}).Info("Partner deleted")
	return nil
}
