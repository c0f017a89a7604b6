package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raghavbatra/bazaario-backend/pkg/migrate"
)

func TestSettlementSchemaMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_init_settlement_schema.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no settlement schema migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE products",
		"CHECK (stock >= 0)",
		"CREATE TABLE affiliate_commissions",
		"CONSTRAINT ux_affiliate_commissions_dedup UNIQUE (affiliate_id, order_item_id, level)",
		"CHECK (level BETWEEN 1 AND 3)",
		"CREATE TABLE outbox_events",
		"WHERE published_at IS NULL",
		"DROP TABLE IF EXISTS affiliate_commissions",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}
