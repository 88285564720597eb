// internal/directory/postgres.go
package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"leadrouter/internal/common/logger"
	"leadrouter/internal/models"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

const snapshotCacheKey = "vendors:active"

// PostgresDirectory reads the vendor roster from Postgres with a short-TTL
// Redis snapshot cache in front. The cached snapshot may lag load-counter
// updates by up to the TTL; that staleness is acceptable for advisory
// ranking input.
type PostgresDirectory struct {
	db       *sql.DB
	redis    *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
}

func NewPostgresDirectory(db *sql.DB, rdb *redis.Client, cacheTTL time.Duration, log logger.Logger) *PostgresDirectory {
	return &PostgresDirectory{
		db:       db,
		redis:    rdb,
		cacheTTL: cacheTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "vendor-directory"}),
	}
}

// ListActiveVendors returns every active vendor with current load and
// capacity as of read time.
func (d *PostgresDirectory) ListActiveVendors(ctx context.Context) ([]models.Vendor, error) {
	if d.redis != nil {
		if val, err := d.redis.Get(ctx, snapshotCacheKey).Result(); err == nil {
			var vendors []models.Vendor
			if err := json.Unmarshal([]byte(val), &vendors); err == nil {
				return vendors, nil
			}
		}
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, email, phone, specialties, max_concurrent_leads,
		       current_load, conversion_rate, avg_response_minutes, avg_rating, active
		FROM vendors
		WHERE active = TRUE
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query vendors: %w", err)
	}
	defer rows.Close()

	var vendors []models.Vendor
	for rows.Next() {
		var v models.Vendor
		if err := rows.Scan(
			&v.ID, &v.Name, &v.Email, &v.Phone, pq.Array(&v.Specialties),
			&v.MaxConcurrentLeads, &v.CurrentLoad, &v.ConversionRate,
			&v.AvgResponseMinutes, &v.AvgRating, &v.Active,
		); err != nil {
			return nil, fmt.Errorf("scan vendor: %w", err)
		}
		vendors = append(vendors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vendors: %w", err)
	}

	if d.redis != nil && len(vendors) > 0 {
		if data, err := json.Marshal(vendors); err == nil {
			if err := d.redis.Set(ctx, snapshotCacheKey, data, d.cacheTTL).Err(); err != nil {
				d.logger.Warn("vendor snapshot cache write failed", map[string]interface{}{
					"error": err,
				})
			}
		}
	}

	return vendors, nil
}

// InvalidateCache drops the cached snapshot, used after load reconciliation.
func (d *PostgresDirectory) InvalidateCache(ctx context.Context) {
	if d.redis == nil {
		return
	}
	if err := d.redis.Del(ctx, snapshotCacheKey).Err(); err != nil {
		d.logger.Warn("vendor snapshot cache invalidation failed", map[string]interface{}{
			"error": err,
		})
	}
}
