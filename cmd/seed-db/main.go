// Command seed-db loads development fixtures: merchants, the product
// catalog, influencers, a sample ad campaign with its selections, and a
// default API key.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wellnesstree/marketplace-api/internal/storage/postgres"
)

type merchantJSON struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	TaxRate decimal.Decimal `json:"tax_rate"`
}

type productJSON struct {
	ID         string          `json:"id"`
	MerchantID string          `json:"merchant_id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Category   string          `json:"category"`
	PoolItem   bool            `json:"pool_item"`
}

type influencerJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	TierRate decimal.Decimal `json:"tier_rate"`
}

type adJSON struct {
	ID         string          `json:"id"`
	MerchantID string          `json:"merchant_id"`
	Title      string          `json:"title"`
	Status     string          `json:"status"`
	BonusRate  decimal.Decimal `json:"bonus_rate"`
	Selections []selectionJSON `json:"selections"`
}

type selectionJSON struct {
	ID           string `json:"id"`
	InfluencerID string `json:"influencer_id"`
	TrackingCode string `json:"tracking_code"`
	Status       string `json:"status"`
}

type seedFile struct {
	Merchants   []merchantJSON   `json:"merchants"`
	Products    []productJSON    `json:"products"`
	Influencers []influencerJSON `json:"influencers"`
	Ads         []adJSON         `json:"ads"`
}

func main() {
	var (
		databaseURL  string
		seedPath     string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/fixtures.json", "path to seed fixtures JSON file")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or WELL_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or WELL_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("WELL_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or WELL_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("WELL_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath, apiKey, pepper string) error {
	slog.Info("reading seed file", slog.String("path", seedPath))

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedMerchants(ctx, pool, seed.Merchants); err != nil {
		return errors.Wrap(err, "seed merchants")
	}
	if err := seedProducts(ctx, pool, seed.Products); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedInfluencers(ctx, pool, seed.Influencers); err != nil {
		return errors.Wrap(err, "seed influencers")
	}
	if err := seedAds(ctx, pool, seed.Ads); err != nil {
		return errors.Wrap(err, "seed ads")
	}
	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedMerchants(ctx context.Context, pool *pgxpool.Pool, merchants []merchantJSON) error {
	slog.Info("upserting merchants", slog.Int("count", len(merchants)))

	const q = `INSERT INTO merchants (id, name, tax_rate) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, tax_rate = EXCLUDED.tax_rate`
	for _, m := range merchants {
		if _, err := pool.Exec(ctx, q, m.ID, m.Name, m.TaxRate); err != nil {
			return errors.Wrapf(err, "upsert merchant %s", m.ID)
		}
	}
	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, products []productJSON) error {
	slog.Info("upserting products", slog.Int("count", len(products)))

	const q = `INSERT INTO products (id, merchant_id, name, price, category, pool_item)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			merchant_id = EXCLUDED.merchant_id,
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			category = EXCLUDED.category,
			pool_item = EXCLUDED.pool_item`
	for _, p := range products {
		if _, err := pool.Exec(ctx, q, p.ID, p.MerchantID, p.Name, p.Price, p.Category, p.PoolItem); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
	}
	return nil
}

func seedInfluencers(ctx context.Context, pool *pgxpool.Pool, influencers []influencerJSON) error {
	slog.Info("upserting influencers", slog.Int("count", len(influencers)))

	const q = `INSERT INTO influencers (id, name, tier_rate) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, tier_rate = EXCLUDED.tier_rate`
	for _, inf := range influencers {
		if _, err := pool.Exec(ctx, q, inf.ID, inf.Name, inf.TierRate); err != nil {
			return errors.Wrapf(err, "upsert influencer %s", inf.ID)
		}
	}
	return nil
}

func seedAds(ctx context.Context, pool *pgxpool.Pool, ads []adJSON) error {
	slog.Info("upserting ads", slog.Int("count", len(ads)))

	const adQ = `INSERT INTO ads (id, merchant_id, title, status, bonus_rate)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			status = EXCLUDED.status,
			bonus_rate = EXCLUDED.bonus_rate`
	const selQ = `INSERT INTO ad_selections (id, ad_id, merchant_id, influencer_id, tracking_code, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status`

	for _, a := range ads {
		if _, err := pool.Exec(ctx, adQ, a.ID, a.MerchantID, a.Title, a.Status, a.BonusRate); err != nil {
			return errors.Wrapf(err, "upsert ad %s", a.ID)
		}
		for _, s := range a.Selections {
			if _, err := pool.Exec(ctx, selQ, s.ID, a.ID, a.MerchantID, s.InfluencerID, s.TrackingCode, s.Status); err != nil {
				return errors.Wrapf(err, "upsert selection %s", s.ID)
			}
		}
	}
	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	const q = `INSERT INTO api_keys (id, key_hash, name, scopes) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET key_hash = EXCLUDED.key_hash`
	if _, err := pool.Exec(ctx, q, "default", keyHash, "Default test key", []string{"create_order", "track_ads"}); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"))
	return nil
}
