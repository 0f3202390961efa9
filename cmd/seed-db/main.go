// Command seed-db loads the demo menu, users, tokens and a welcome code.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/bistro/internal/domain/auth"
	"github.com/xenking/bistro/internal/domain/discount"
	"github.com/xenking/bistro/internal/handler"
	"github.com/xenking/bistro/internal/storage/postgres"
)

const (
	upsertCategorySQL = `INSERT INTO categories (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, active = TRUE`

	upsertDishSQL = `INSERT INTO dishes (id, name, description, price, category_id) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description,
			price = EXCLUDED.price, category_id = EXCLUDED.category_id, modified_at = now()`

	upsertAddressSQL = `INSERT INTO addresses (id, user_id, street, area) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`
)

type menuJSON struct {
	Categories []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"categories"`
	Dishes []struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Price       decimal.Decimal `json:"price"`
		Category    string          `json:"category"`
	} `json:"dishes"`
}

type seedUser struct {
	principal auth.Principal
	token     string
}

func main() {
	var (
		databaseURL   string
		menuFile      string
		pepper        string
		managerToken  string
		employeeToken string
		customerToken string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&menuFile, "menu-file", "db/seed/menu.json", "path to menu JSON file")
	flag.StringVar(&pepper, "token-pepper", "", "HMAC pepper for token hashing (or BISTRO_TOKEN_PEPPER env)")
	flag.StringVar(&managerToken, "manager-token", "", "manager bearer token (or BISTRO_SEED_MANAGER_TOKEN env)")
	flag.StringVar(&employeeToken, "employee-token", "", "employee bearer token (or BISTRO_SEED_EMPLOYEE_TOKEN env)")
	flag.StringVar(&customerToken, "customer-token", "", "customer bearer token (or BISTRO_SEED_CUSTOMER_TOKEN env)")
	flag.Parse()

	databaseURL = orEnv(databaseURL, "DATABASE_URL")
	pepper = orEnv(pepper, "BISTRO_TOKEN_PEPPER")
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if pepper == "" {
		slog.Error("token pepper is required: set --token-pepper or BISTRO_TOKEN_PEPPER")
		os.Exit(1)
	}

	users := []seedUser{
		{auth.Principal{UserID: "manager", Username: "manager", Role: auth.RoleManager}, orEnv(managerToken, "BISTRO_SEED_MANAGER_TOKEN")},
		{auth.Principal{UserID: "employee", Username: "employee", Role: auth.RoleEmployee}, orEnv(employeeToken, "BISTRO_SEED_EMPLOYEE_TOKEN")},
		{auth.Principal{UserID: "customer", Username: "customer", Role: auth.RoleCustomer}, orEnv(customerToken, "BISTRO_SEED_CUSTOMER_TOKEN")},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, menuFile, []byte(pepper), users); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("seed completed successfully")
}

func orEnv(v, key string) string {
	if v != "" {
		return v
	}
	return os.Getenv(key)
}

func run(ctx context.Context, databaseURL, menuFile string, pepper []byte, users []seedUser) error {
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

	if err := seedMenu(ctx, pool, menuFile); err != nil {
		return errors.Wrap(err, "seed menu")
	}
	if err := seedUsers(ctx, postgres.NewTokenRepository(pool), pepper, users); err != nil {
		return errors.Wrap(err, "seed users")
	}
	if _, err := pool.Exec(ctx, upsertAddressSQL, "customer-home", "customer", "12 Harbour Road", "Old Town"); err != nil {
		return errors.Wrap(err, "seed address")
	}
	if err := seedDiscount(ctx, postgres.NewDiscountRepository(pool, postgres.DefaultRetryConfig)); err != nil {
		return errors.Wrap(err, "seed discount")
	}
	return nil
}

func seedMenu(ctx context.Context, pool *pgxpool.Pool, menuFile string) error {
	slog.Info("reading menu file", slog.String("path", menuFile))
	data, err := os.ReadFile(menuFile)
	if err != nil {
		return errors.Wrap(err, "read menu file")
	}
	var menu menuJSON
	if err := json.Unmarshal(data, &menu); err != nil {
		return errors.Wrap(err, "parse menu JSON")
	}

	batch := &pgx.Batch{}
	for _, c := range menu.Categories {
		batch.Queue(upsertCategorySQL, c.ID, c.Name)
	}
	for _, d := range menu.Dishes {
		batch.Queue(upsertDishSQL, d.ID, d.Name, d.Description, d.Price, d.Category)
	}
	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "upsert menu")
	}
	slog.Info("upserted menu",
		slog.Int("categories", len(menu.Categories)),
		slog.Int("dishes", len(menu.Dishes)),
	)
	return nil
}

func seedUsers(ctx context.Context, repo *postgres.TokenRepository, pepper []byte, users []seedUser) error {
	for _, u := range users {
		if err := repo.UpsertUser(ctx, u.principal); err != nil {
			return errors.Wrapf(err, "upsert user %s", u.principal.Username)
		}
		if u.token == "" {
			slog.Warn("no token given, user cannot log in", slog.String("user", u.principal.Username))
			continue
		}
		if err := repo.StoreToken(ctx, handler.HashToken(u.token, pepper), u.principal.UserID); err != nil {
			return errors.Wrapf(err, "store token for %s", u.principal.Username)
		}
		slog.Info("upserted user", slog.String("user", u.principal.Username), slog.String("role", string(u.principal.Role)))
	}
	return nil
}

func seedDiscount(ctx context.Context, repo *postgres.DiscountRepository) error {
	now := time.Now().UTC()
	n, err := repo.Import(ctx, []discount.Code{{
		ID:              "welcome10",
		Code:            "WELCOME10",
		Percentage:      10,
		ExpirationDate:  now.AddDate(1, 0, 0),
		IsActive:        true,
		MaxUsagePerUser: discount.DefaultMaxUsagePerUser,
		CreatedAt:       now,
	}})
	if err != nil {
		return err
	}
	slog.Info("seeded discount code", slog.String("code", "WELCOME10"), slog.Int64("inserted", n))
	return nil
}
