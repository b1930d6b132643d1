// Package cache keeps read-mostly ledger rows in Redis. A Cache built
// without a client, or a nil *Cache, misses on every read and ignores
// writes, so callers never need to check whether Redis is configured.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/ledgerbook/backend/internal/logger"
	"github.com/ledgerbook/backend/internal/models"
)

const keyPrefix = "ledger"

type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.rdb != nil
}

func accountKey(companyID, accountID string) string {
	return fmt.Sprintf("%s:%s:account:%s", keyPrefix, companyID, accountID)
}

func partnerKey(companyID, partnerID string) string {
	return fmt.Sprintf("%s:%s:partner:%s", keyPrefix, companyID, partnerID)
}

func transactionKey(companyID string, transactionID int64) string {
	return fmt.Sprintf("%s:%s:transaction:%d", keyPrefix, companyID, transactionID)
}

func blacklistKey(token string) string {
	return fmt.Sprintf("blacklist:%s", token)
}

func (c *Cache) get(ctx context.Context, key string, dst any) bool {
	if !c.enabled() {
		return false
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Component("cache").WithError(err).WithField("key", key).Warn("Cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		logger.Component("cache").WithError(err).WithField("key", key).Warn("Discarding undecodable cache entry")
		c.del(ctx, key)
		return false
	}
	return true
}

func (c *Cache) set(ctx context.Context, key string, v any) {
	if !c.enabled() {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		logger.Component("cache").WithError(err).WithField("key", key).Warn("Cache encode failed")
		return
	}
	if err := c.rdb.Set(ctx, key, string(data), c.ttl).Err(); err != nil {
		logger.Component("cache").WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}

func (c *Cache) del(ctx context.Context, key string) {
	if !c.enabled() {
		return
	}
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		logger.Component("cache").WithError(err).WithField("key", key).Warn("Cache invalidation failed")
	}
}

// GetAccount returns a cached account of companyID.
func (c *Cache) GetAccount(ctx context.Context, companyID, accountID string) (*models.Account, bool) {
	var a models.Account
	if !c.get(ctx, accountKey(companyID, accountID), &a) || a.CompanyID != companyID {
		return nil, false
	}
	return &a, true
}

func (c *Cache) SetAccount(ctx context.Context, a *models.Account) {
	c.set(ctx, accountKey(a.CompanyID, a.ID), a)
}

func (c *Cache) InvalidateAccount(ctx context.Context, companyID, accountID string) {
	c.del(ctx, accountKey(companyID, accountID))
}

func (c *Cache) GetPartner(ctx context.Context, companyID, partnerID string) (*models.Partner, bool) {
	var p models.Partner
	if !c.get(ctx, partnerKey(companyID, partnerID), &p) || p.CompanyID != companyID {
		return nil, false
	}
	return &p, true
}

func (c *Cache) SetPartner(ctx context.Context, p *models.Partner) {
	c.set(ctx, partnerKey(p.CompanyID, p.ID), p)
}

func (c *Cache) InvalidatePartner(ctx context.Context, companyID, partnerID string) {
	c.del(ctx, partnerKey(companyID, partnerID))
}

// GetTransaction returns a cached posted transaction. Posted transactions
// are immutable, so entries are only dropped on deletion or expiry.
func (c *Cache) GetTransaction(ctx context.Context, companyID string, transactionID int64) (*models.Transaction, bool) {
	var t models.Transaction
	if !c.get(ctx, transactionKey(companyID, transactionID), &t) || t.CompanyID != companyID {
		return nil, false
	}
	return &t, true
}

func (c *Cache) SetTransaction(ctx context.Context, t *models.Transaction) {
	c.set(ctx, transactionKey(t.CompanyID, t.ID), t)
}

func (c *Cache) InvalidateTransaction(ctx context.Context, companyID string, transactionID int64) {
	c.del(ctx, transactionKey(companyID, transactionID))
}

// Blacklist revokes a token until ttl elapses.
func (c *Cache) Blacklist(ctx context.Context, token string, ttl time.Duration) error {
	if !c.enabled() {
		return nil
	}
	if ttl <= 0 {
		return nil
	}
	return c.rdb.Set(ctx, blacklistKey(token), "1", ttl).Err()
}

// IsBlacklisted reports whether token was revoked. Redis errors are
// returned so the caller can decide whether to fail closed.
func (c *Cache) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	if !c.enabled() {
		return false, nil
	}
	n, err := c.rdb.Exists(ctx, blacklistKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
