package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/emahelps/sms-hub/internal/config"
	"github.com/emahelps/sms-hub/internal/db"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo registrations and volunteers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		log.Println(">> Seeding demo data...")
		if err := seedDemo(sqlDB); err != nil {
			return err
		}
		log.Println(">> Seed completed")
		return nil
	},
}

type demoVolunteer struct{ id, name, phone, email, city, skills string }
type demoFamily struct{ id, mother, phone, email, city, needs string }

// seedDemo inserts deterministic demo rows plus their conversation
// shells. Fixed ids keep reruns idempotent.
func seedDemo(dbx *sqlx.DB) error {
	volunteers := []demoVolunteer{
		{"seed-vol-1", "Dana Levi", "+15551112222", "dana@example.org", "Springfield", "driving, errands"},
		{"seed-vol-2", "Eli Baron", "+15553334444", "eli@example.org", "Springfield", "meals"},
	}
	families := []demoFamily{
		{"seed-reg-1", "Sarah Cohen", "+15551234567", "sarah@example.org", "Springfield", "groceries weekly"},
		{"seed-reg-2", "Maya Peretz", "+15559876543", "maya@example.org", "Shelbyville", "school pickup"},
	}

	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()

	const volQ = `
		INSERT INTO volunteers (id, name, phone, email, city, skills, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 'new', ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), updated_at = VALUES(updated_at)
	`
	for _, v := range volunteers {
		if _, err := tx.Exec(volQ, v.id, v.name, v.phone, v.email, v.city, v.skills, now, now); err != nil {
			return fmt.Errorf("insert volunteer %q: %w", v.name, err)
		}
	}

	const regQ = `
		INSERT INTO registrations (id, mother_name, phone, email, city, needs, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 'new', ?, ?)
		ON DUPLICATE KEY UPDATE mother_name = VALUES(mother_name), updated_at = VALUES(updated_at)
	`
	for _, f := range families {
		if _, err := tx.Exec(regQ, f.id, f.mother, f.phone, f.email, f.city, f.needs, now, now); err != nil {
			return fmt.Errorf("insert registration %q: %w", f.mother, err)
		}
	}

	// conversation shells so the inbox is not empty on first run
	const convQ = `
		INSERT INTO conversations (phone, contact_name, contact_type, status, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', ?, ?)
		ON DUPLICATE KEY UPDATE contact_name = VALUES(contact_name), updated_at = VALUES(updated_at)
	`
	for _, v := range volunteers {
		if _, err := tx.Exec(convQ, v.phone, v.name, "volunteer", now, now); err != nil {
			return fmt.Errorf("insert conversation %q: %w", v.phone, err)
		}
	}
	for _, f := range families {
		if _, err := tx.Exec(convQ, f.phone, f.mother, "family", now, now); err != nil {
			return fmt.Errorf("insert conversation %q: %w", f.phone, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}
