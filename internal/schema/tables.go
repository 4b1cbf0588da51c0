package schema

import "github.com/king0079z/Tender-Tracker-60/internal/database"

// column type names per dialect.
type types struct {
	id        string // primary key with generated default
	ref       string // foreign key to an id column
	timestamp string
	now       string
}

var dialectTypes = map[database.Dialect]types{
	database.DialectPostgres: {
		id:        "uuid PRIMARY KEY DEFAULT gen_random_uuid()",
		ref:       "uuid",
		timestamp: "timestamptz",
		now:       "now()",
	},
	database.DialectSQLite: {
		id:        "text PRIMARY KEY DEFAULT (lower(hex(randomblob(16))))",
		ref:       "text",
		timestamp: "text",
		now:       "CURRENT_TIMESTAMP",
	},
}

// Table names in creation order.
var Tables = []string{
	"timelines",
	"meetings",
	"meeting_attendees",
	"communications",
	"communication_responses",
}

func createStatements(t types) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS timelines (
  id ` + t.id + `,
  company_id text UNIQUE NOT NULL,
  company_name text NOT NULL,
  nda_received_date ` + t.timestamp + `,
  nda_received_completed boolean DEFAULT false,
  nda_signed_date ` + t.timestamp + `,
  nda_signed_completed boolean DEFAULT false,
  rfi_sent_date ` + t.timestamp + `,
  rfi_sent_completed boolean DEFAULT false,
  rfi_due_date ` + t.timestamp + `,
  rfi_due_completed boolean DEFAULT false,
  offer_received_date ` + t.timestamp + `,
  offer_received_completed boolean DEFAULT false,
  created_at ` + t.timestamp + ` DEFAULT ` + t.now + `,
  updated_at ` + t.timestamp + ` DEFAULT ` + t.now + `
)`,
		`CREATE TABLE IF NOT EXISTS meetings (
  id ` + t.id + `,
  company_id text NOT NULL REFERENCES timelines(company_id) ON DELETE CASCADE,
  meeting_date ` + t.timestamp + ` NOT NULL,
  subject text NOT NULL,
  notes text,
  created_at ` + t.timestamp + ` DEFAULT ` + t.now + `
)`,
		`CREATE TABLE IF NOT EXISTS meeting_attendees (
  id ` + t.id + `,
  meeting_id ` + t.ref + ` NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
  name text NOT NULL,
  email text,
  role text,
  created_at ` + t.timestamp + ` DEFAULT ` + t.now + `
)`,
		`CREATE TABLE IF NOT EXISTS communications (
  id ` + t.id + `,
  company_id text NOT NULL REFERENCES timelines(company_id) ON DELETE CASCADE,
  subject text NOT NULL,
  content text NOT NULL,
  sent_date ` + t.timestamp + ` NOT NULL,
  created_by text NOT NULL,
  created_at ` + t.timestamp + ` DEFAULT ` + t.now + `,
  updated_at ` + t.timestamp + ` DEFAULT ` + t.now + `
)`,
		`CREATE TABLE IF NOT EXISTS communication_responses (
  id ` + t.id + `,
  communication_id ` + t.ref + ` NOT NULL REFERENCES communications(id) ON DELETE CASCADE,
  response text NOT NULL,
  responder_name text NOT NULL,
  created_at ` + t.timestamp + ` DEFAULT ` + t.now + `,
  updated_at ` + t.timestamp + ` DEFAULT ` + t.now + `
)`,
	}
}
