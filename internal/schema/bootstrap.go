package schema

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/king0079z/Tender-Tracker-60/internal/database"
)

// Result summarizes a bootstrap run.
type Result struct {
	Tables        int // tables ensured
	ExistingRows  int64
	VendorsSeeded int64
}

// Bootstrapper creates the schema and seeds vendors.
type Bootstrapper struct {
	logger *slog.Logger
}

// New creates a Bootstrapper.
func New(logger *slog.Logger) *Bootstrapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bootstrapper{logger: logger.With("component", "schema")}
}

// Bootstrap satisfies connection.Bootstrapper.
func (b *Bootstrapper) Bootstrap(ctx context.Context, conn database.Conn) error {
	_, err := b.Run(ctx, conn)
	return err
}

// Run creates any missing tables and seeds the vendor list when timelines is
// empty.
func (b *Bootstrapper) Run(ctx context.Context, conn database.Conn) (Result, error) {
	var res Result

	t, ok := dialectTypes[conn.Dialect()]
	if !ok {
		return res, fmt.Errorf("unsupported dialect %q", conn.Dialect())
	}

	for i, stmt := range createStatements(t) {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return res, fmt.Errorf("create table %s: %w", Tables[i], err)
		}
		res.Tables++
	}
	b.logger.Info("tables ready", "tables", res.Tables)

	count, err := countTimelines(ctx, conn)
	if err != nil {
		return res, err
	}
	res.ExistingRows = count

	if count > 0 {
		b.logger.Info("vendor data already present, skipping seed", "rows", count)
		return res, nil
	}

	insert := seedStatement(conn.Dialect())
	for _, v := range Vendors {
		n, err := conn.Exec(ctx, insert, v.ID, v.Name)
		if err != nil {
			return res, fmt.Errorf("seed vendor %s: %w", v.Name, err)
		}
		res.VendorsSeeded += n
	}
	b.logger.Info("vendor data seeded", "vendors", res.VendorsSeeded)

	return res, nil
}

func countTimelines(ctx context.Context, conn database.Conn) (int64, error) {
	result, err := conn.Query(ctx, "SELECT COUNT(*) AS count FROM timelines", nil)
	if err != nil {
		return 0, fmt.Errorf("count timelines: %w", err)
	}
	if len(result.Rows) != 1 {
		return 0, fmt.Errorf("count timelines: got %d rows", len(result.Rows))
	}

	switch v := result.Rows[0]["count"].(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("count timelines: unexpected type %T", v)
	}
}

func seedStatement(d database.Dialect) string {
	p1, p2 := "$1", "$2"
	if d == database.DialectSQLite {
		p1, p2 = "?", "?"
	}
	return `INSERT INTO timelines (
  company_id,
  company_name,
  nda_received_completed,
  nda_signed_completed,
  rfi_sent_completed,
  rfi_due_completed,
  offer_received_completed
) VALUES (` + p1 + `, ` + p2 + `, false, false, false, false, false)
ON CONFLICT (company_id) DO NOTHING`
}
