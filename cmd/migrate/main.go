package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"log"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-booking/internal/config"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

// Development schema tool: resets the ledger tables through bun and optionally
// seeds a sample booking. Production schema changes go through the versioned
// migrations directory instead.
func main() {
	reset := flag.Bool("reset", false, "drop and recreate all tables")
	seed := flag.Bool("seed", false, "insert sample data")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN()))
	sqldb := sql.OpenDB(connector)
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		log.Fatalf("failed to connect to Postgres: %v", err)
	}
	db := bun.NewDB(sqldb, pgdialect.New())

	if *reset {
		if err := dropTables(ctx, db); err != nil {
			log.Fatalf("drop failed: %v", err)
		}
		log.Println("tables dropped")
	}

	if err := createTables(ctx, db); err != nil {
		log.Fatalf("create failed: %v", err)
	}
	log.Println("tables created")

	if *seed {
		if err := seedData(ctx, db); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
		log.Println("sample data inserted")
	}
}

func dropTables(ctx context.Context, db *bun.DB) error {
	for _, model := range []interface{}{
		(*models.NotificationTask)(nil),
		(*models.BookingEvent)(nil),
		(*models.Booking)(nil),
	} {
		if _, err := db.NewDropTable().Model(model).IfExists().Cascade().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func createTables(ctx context.Context, db *bun.DB) error {
	for _, model := range []interface{}{
		(*models.Booking)(nil),
		(*models.BookingEvent)(nil),
		(*models.NotificationTask)(nil),
	} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func seedData(ctx context.Context, db *bun.DB) error {
	now := time.Now().UTC()
	items := json.RawMessage(`[{"name":"deep cleaning","qty":1,"price":149900}]`)

	booking := &models.Booking{
		ID:            utils.GenerateBookingID(),
		UserID:        "usr_demo",
		Kind:          models.KindService,
		Status:        models.StatusPending,
		Items:         items,
		TotalAmount:   149900,
		Address:       "42 Demo Street",
		ReceiverName:  "Demo User",
		ReceiverPhone: "+911234567890",
		ScheduledDate: now.AddDate(0, 0, 3).Format("2006-01-02"),
		ScheduledSlot: "10:00-12:00",
		Checksum:      utils.GenerateChecksum("usr_demo", items, 149900, now),
		SchemaVersion: models.BookingSchemaVersion,
		EventCount:    1,
		CreatedAt:     now,
	}

	event := &models.BookingEvent{
		ID:        utils.GenerateEventID(),
		BookingID: booking.ID,
		ActorID:   "usr_demo",
		Type:      models.EventCreated,
		Status:    models.StatusPending,
		CreatedAt: now,
	}

	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(booking).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(event).Exec(ctx)
		return err
	})
}
