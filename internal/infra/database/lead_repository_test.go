package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/lead-relay/internal/entity"
)

func TestSchemaFromColumns(t *testing.T) {
	schema := schemaFromColumns([]columnInfo{
		{Name: "id", DataType: "uuid", UDTName: "uuid"},
		{Name: "name", DataType: "text", UDTName: "text"},
		{Name: "email", DataType: "USER-DEFINED", UDTName: "citext"},
		{Name: "contact", DataType: "text", UDTName: "text", DomainName: "email_address"},
		{Name: "source", DataType: "character varying", UDTName: "varchar"},
		{Name: "status", DataType: "USER-DEFINED", UDTName: "lead_status"},
		{Name: "created_at", DataType: "timestamp with time zone", UDTName: "timestamptz"},
	}, "id")

	assert.Equal(t, []entity.Property{
		{Name: "name", Kind: entity.PropertyKindRichText},
		{Name: "email", Kind: entity.PropertyKindEmail},
		{Name: "contact", Kind: entity.PropertyKindEmail},
		{Name: "source", Kind: entity.PropertyKindRichText},
		{Name: "status", Kind: entity.PropertyKindSelect},
		{Name: "created_at", Kind: entity.PropertyKindOther},
	}, schema.Properties)
}

func TestInsertQueryUsesOnlyGivenValues(t *testing.T) {
	repo := NewLeadRepository(nil, "")
	query, args := repo.insertQuery("id-1", []entity.FieldValue{
		{Field: entity.Field{Name: "name", Kind: entity.PropertyKindRichText}, Value: "Ann"},
		{Field: entity.Field{Name: "E-Mail", Kind: entity.PropertyKindRichText}, Value: "a@x.com"},
	})

	assert.Equal(t, `INSERT INTO "leads" ("id", "name", "E-Mail") VALUES ($1, $2, $3) RETURNING "id"::text`, query)
	assert.Equal(t, []any{"id-1", "Ann", "a@x.com"}, args)
}

func TestSelectByEmailQuery(t *testing.T) {
	repo := NewLeadRepository(nil, "crm_leads")
	query, fields := repo.selectByEmailQuery(&entity.SchemaMapping{
		Title:      entity.Field{Name: "name", Kind: entity.PropertyKindRichText},
		Email:      entity.Field{Name: "email", Kind: entity.PropertyKindEmail},
		StatusKind: entity.StatusKindAbsent,
	})

	assert.Equal(t, `SELECT "id"::text, COALESCE("name"::text, ''), COALESCE("email"::text, '') FROM "crm_leads" WHERE "email" = $1 LIMIT 1`, query)
	assert.Len(t, fields, 2)
}

func TestFindByEmailRequiresEmailColumn(t *testing.T) {
	repo := NewLeadRepository(nil, "")

	_, err := repo.FindByEmail(context.Background(), &entity.SchemaMapping{}, "a@x.com")
	assert.Error(t, err)
}

func postgresIntegrationDSN(t *testing.T) string {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("LEAD_RELAY_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("set LEAD_RELAY_TEST_POSTGRES_DSN to run postgres integration tests")
	}
	return dsn
}

func TestPostgresIntegrationLeadRoundTrip(t *testing.T) {
	dsn := postgresIntegrationDSN(t)
	db, err := NewDBConnection(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	table := "leads_it_" + suffix
	enum := "lead_status_it_" + suffix
	ctx := context.Background()

	mustExec(t, db, fmt.Sprintf(`CREATE TYPE %s AS ENUM ('New', 'Contacted')`, pq.QuoteIdentifier(enum)))
	mustExec(t, db, fmt.Sprintf(`CREATE TABLE %s (
		id uuid PRIMARY KEY,
		name text,
		email text NOT NULL,
		message text,
		status %s,
		created_at timestamptz NOT NULL DEFAULT NOW()
	)`, pq.QuoteIdentifier(table), pq.QuoteIdentifier(enum)))
	t.Cleanup(func() {
		_, _ = db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", pq.QuoteIdentifier(table)))
		_, _ = db.Exec(fmt.Sprintf("DROP TYPE IF EXISTS %s", pq.QuoteIdentifier(enum)))
	})

	repo := NewLeadRepository(db, table)
	schema, err := repo.GetSchema(ctx)
	require.NoError(t, err)
	assert.Contains(t, schema.Properties, entity.Property{Name: "status", Kind: entity.PropertyKindSelect})

	mapping := &entity.SchemaMapping{
		Title:      entity.Field{Name: "name", Kind: entity.PropertyKindRichText},
		Email:      entity.Field{Name: "email", Kind: entity.PropertyKindRichText},
		Note:       entity.Field{Name: "message", Kind: entity.PropertyKindRichText},
		Status:     entity.Field{Name: "status", Kind: entity.PropertyKindSelect},
		StatusKind: entity.StatusKindSelect,
	}

	missing, err := repo.FindByEmail(ctx, mapping, "a@x.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	created, err := repo.CreateRecord(ctx, mapping, entity.LeadSubmission{Email: "a@x.com", Name: "Ann"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	found, err := repo.FindByEmail(ctx, mapping, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "Ann", found.Name)
	assert.Equal(t, "", found.Note, "empty note is stored as NULL")
	assert.Equal(t, entity.LeadStatusNew, found.Status)
}

func mustExec(t *testing.T, db *sql.DB, query string) {
	t.Helper()
	_, err := db.Exec(query)
	require.NoError(t, err)
}
