package services

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerbook/backend/internal/cache"
	"github.com/ledgerbook/backend/internal/logger"
	"github.com/ledgerbook/backend/internal/store"
	"github.com/sirupsen/logrus"
)

type UserService struct {
	store store.Store
	cache *cache.Cache
	log   *logrus.Entry
	now   func() time.Time
}

func NewUserService(st store.Store, c *cache.Cache) *UserService {
	return &UserService{
		store: st,
		cache: c,
		log:   logger.Component("users"),
		now:   now,
	}
}

// RemoveUser deletes a user of companyID. Transactions the user created
// stay posted with their creator cleared.
func (s *UserService) RemoveUser(ctx context.Context, companyID, userID string) error {
	var cleared []int64
	err := s.store.RunInTx(ctx, companyID, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.GetUser(ctx, companyID, userID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound("user", userID)
		}
		if err != nil {
			return err
		}

		cleared, err = tx.ClearTransactionCreator(ctx, companyID, userID, s.now())
		if err != nil {
			return err
		}

		err = tx.DeleteUser(ctx, companyID, userID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound("user", userID)
		}
		return err
	})
	if err != nil {
		return wrapStorage("remove user", err)
	}

	for _, id := range cleared {
		s.cache.InvalidateTransaction(ctx, companyID, id)
	}
	s.log.WithFields(logrus.Fields{"company_id": companyID, "user_id": userID, "transactions": len(cleared)}).Info("User removed")
	return nil
}
