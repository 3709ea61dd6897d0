package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"fanpass/internal/config"
	"fanpass/internal/database"
	"fanpass/internal/logger"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var (
	hosts         = flag.Int("hosts", 3, "Number of event hosts to create")
	eventsPerHost = flag.Int("events", 2, "Number of events per host")
	buyers        = flag.Int("buyers", 10, "Number of ticket buyers to create")
	clearExisting = flag.Bool("clear", false, "Delete previously generated demo data first")
	dryRun        = flag.Bool("dry-run", false, "Show what would be generated without making changes")
)

// Prefix of every generated username, used by -clear
const demoPrefix = "demo_"

// DemoGenerator наполняет базу пользователями и событиями для локальной
// проверки платежного потока
type DemoGenerator struct {
	db  *database.DB
	rnd *rand.Rand
}

type demoUser struct {
	ID       string
	Username string
}

type demoEvent struct {
	ID           string
	Name         string
	Price        decimal.Decimal
	MaxAttendees *int
	CreatorID    string
}

func main() {
	flag.Parse()
	logger.Init("info", "text")

	slog.Info("Starting demo data generator...")

	dbCfg, err := config.LoadDatabase()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.Connect(dbCfg)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	generator := &DemoGenerator{db: db, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}

	if err := generator.Generate(context.Background()); err != nil {
		slog.Error("Failed to generate demo data", "error", err)
		os.Exit(1)
	}

	slog.Info("Demo data generation completed successfully!")
}

func (g *DemoGenerator) Generate(ctx context.Context) error {
	hostUsers := g.users("host", *hosts)
	buyerUsers := g.users("buyer", *buyers)

	var events []demoEvent
	for _, host := range hostUsers {
		for i := 1; i <= *eventsPerHost; i++ {
			events = append(events, g.event(host, i))
		}
	}

	if *dryRun {
		slog.Info("[DRY RUN] Would generate demo data",
			"hosts", len(hostUsers), "buyers", len(buyerUsers), "events", len(events))
		for _, e := range events {
			slog.Info("[DRY RUN] Event", "name", e.Name, "price", e.Price.StringFixed(2), "max_attendees", e.MaxAttendees)
		}
		return nil
	}

	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if *clearExisting {
		if err := clearDemoData(ctx, tx); err != nil {
			return fmt.Errorf("failed to clear demo data: %w", err)
		}
	}

	if err := insertUsers(ctx, tx, append(hostUsers, buyerUsers...)); err != nil {
		return fmt.Errorf("failed to insert users: %w", err)
	}

	if err := insertEvents(ctx, tx, events); err != nil {
		return fmt.Errorf("failed to insert events: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	for _, e := range events {
		slog.Info("Generated event", "event_id", e.ID, "name", e.Name, "price", e.Price.StringFixed(2), "host_id", e.CreatorID)
	}
	for _, u := range buyerUsers {
		slog.Info("Generated buyer", "user_id", u.ID, "username", u.Username)
	}

	return nil
}

func (g *DemoGenerator) users(role string, n int) []demoUser {
	batch := uuid.NewString()[:8]
	out := make([]demoUser, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, demoUser{
			ID:       uuid.NewString(),
			Username: fmt.Sprintf("%s%s_%s_%d", demoPrefix, role, batch, i),
		})
	}
	return out
}

func (g *DemoGenerator) event(host demoUser, n int) demoEvent {
	e := demoEvent{
		ID:        uuid.NewString(),
		Name:      fmt.Sprintf("Demo event %d by %s", n, host.Username),
		Price:     g.eventPrice(),
		CreatorID: host.ID,
	}
	// каждое третье событие без ограничения мест
	if g.rnd.Intn(3) != 0 {
		capacity := g.rnd.Intn(191) + 10
		e.MaxAttendees = &capacity
	}
	return e
}

// eventPrice returns a price between 5.00 and 150.00 in whole cents
func (g *DemoGenerator) eventPrice() decimal.Decimal {
	cents := int64(g.rnd.Intn(14501) + 500)
	return decimal.New(cents, -2)
}

func clearDemoData(ctx context.Context, tx *sqlx.Tx) error {
	statements := []string{
		`DELETE FROM earnings WHERE user_id IN (SELECT id FROM users WHERE username LIKE $1)`,
		`DELETE FROM user_events WHERE event_id IN (SELECT e.id FROM events e JOIN users u ON u.id = e.creator_id WHERE u.username LIKE $1)`,
		`DELETE FROM earnings WHERE event_id IN (SELECT e.id FROM events e JOIN users u ON u.id = e.creator_id WHERE u.username LIKE $1)`,
		`DELETE FROM payments WHERE event_id IN (SELECT e.id FROM events e JOIN users u ON u.id = e.creator_id WHERE u.username LIKE $1)`,
		`DELETE FROM events WHERE creator_id IN (SELECT id FROM users WHERE username LIKE $1)`,
	}

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, demoPrefix+"%"); err != nil {
			return err
		}
	}
	return nil
}

func insertUsers(ctx context.Context, tx *sqlx.Tx, users []demoUser) error {
	const stmt = `INSERT INTO users (id, username) VALUES ($1, $2)`

	for _, u := range users {
		if _, err := tx.ExecContext(ctx, stmt, u.ID, u.Username); err != nil {
			return err
		}
	}
	return nil
}

func insertEvents(ctx context.Context, tx *sqlx.Tx, events []demoEvent) error {
	const stmt = `
		INSERT INTO events (id, name, price, max_attendees, creator_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	now := time.Now()

	for _, e := range events {
		if _, err := tx.ExecContext(ctx, stmt, e.ID, e.Name, e.Price, e.MaxAttendees, e.CreatorID, now, now); err != nil {
			return err
		}
	}
	return nil
}
