package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rotisserie/eris"

	"github.com/xavierca1/lead-relay/internal/entity"
)

const DefaultLeadsTable = "leads"

// LeadRepository keeps leads as rows of a table whose columns are only
// known at runtime. The id column is generated here; every other column
// is reported by GetSchema.
type LeadRepository struct {
	DB       *sql.DB
	Table    string
	IDColumn string
}

func NewLeadRepository(db *sql.DB, table string) *LeadRepository {
	if table == "" {
		table = DefaultLeadsTable
	}
	return &LeadRepository{DB: db, Table: table, IDColumn: "id"}
}

type columnInfo struct {
	Name       string
	DataType   string
	UDTName    string
	DomainName string
}

func (r *LeadRepository) GetSchema(ctx context.Context) (*entity.Schema, error) {
	query := `
		SELECT column_name, data_type, udt_name, COALESCE(domain_name, '')
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position
	`
	rows, err := r.DB.QueryContext(ctx, query, r.Table)
	if err != nil {
		return nil, eris.Wrapf(err, "database: read columns of %s", r.Table)
	}
	defer rows.Close()

	var cols []columnInfo
	for rows.Next() {
		var c columnInfo
		if err := rows.Scan(&c.Name, &c.DataType, &c.UDTName, &c.DomainName); err != nil {
			return nil, eris.Wrap(err, "database: scan column")
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "database: iterate columns")
	}
	if len(cols) == 0 {
		return nil, eris.Errorf("database: table %q not found or has no columns", r.Table)
	}

	return schemaFromColumns(cols, r.IDColumn), nil
}

func schemaFromColumns(cols []columnInfo, idColumn string) *entity.Schema {
	schema := &entity.Schema{}
	for _, c := range cols {
		if c.Name == idColumn {
			continue
		}
		schema.Properties = append(schema.Properties, entity.Property{Name: c.Name, Kind: columnKind(c)})
	}
	return schema
}

func columnKind(c columnInfo) entity.PropertyKind {
	domain := strings.ToLower(c.DomainName)
	if domain == "email" || domain == "email_address" || c.UDTName == "citext" {
		return entity.PropertyKindEmail
	}
	switch c.DataType {
	case "text", "character varying", "character":
		return entity.PropertyKindRichText
	case "USER-DEFINED":
		return entity.PropertyKindSelect
	default:
		return entity.PropertyKindOther
	}
}

func (r *LeadRepository) FindByEmail(ctx context.Context, mapping *entity.SchemaMapping, email string) (*entity.LeadRecord, error) {
	if !mapping.Email.Present() {
		return nil, eris.New("database: mapping has no email column")
	}

	query, fields := r.selectByEmailQuery(mapping)
	dest := make([]any, 1+len(fields))
	var id string
	dest[0] = &id
	values := make([]string, len(fields))
	for i := range values {
		dest[i+1] = &values[i]
	}

	err := r.DB.QueryRowContext(ctx, query, email).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "database: find lead in %s", r.Table)
	}

	rec := &entity.LeadRecord{ID: id}
	for i, f := range fields {
		switch f {
		case mapping.Title:
			rec.Name = values[i]
		case mapping.Email:
			rec.Email = values[i]
		case mapping.Note:
			rec.Note = values[i]
		case mapping.Source:
			rec.Source = values[i]
		case mapping.Status:
			rec.Status = entity.LeadStatus(values[i])
		}
	}
	return rec, nil
}

func (r *LeadRepository) selectByEmailQuery(mapping *entity.SchemaMapping) (string, []entity.Field) {
	var fields []entity.Field
	cols := []string{fmt.Sprintf("%s::text", pq.QuoteIdentifier(r.IDColumn))}
	for _, f := range []entity.Field{mapping.Title, mapping.Email, mapping.Note, mapping.Source, mapping.Status} {
		if !f.Present() {
			continue
		}
		fields = append(fields, f)
		cols = append(cols, fmt.Sprintf("COALESCE(%s::text, '')", pq.QuoteIdentifier(f.Name)))
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 LIMIT 1",
		strings.Join(cols, ", "),
		pq.QuoteIdentifier(r.Table),
		pq.QuoteIdentifier(mapping.Email.Name),
	)
	return query, fields
}

func (r *LeadRepository) CreateRecord(ctx context.Context, mapping *entity.SchemaMapping, lead entity.LeadSubmission) (*entity.LeadRecord, error) {
	id := uuid.New().String()
	query, args := r.insertQuery(id, mapping.Values(lead))

	var returned string
	if err := r.DB.QueryRowContext(ctx, query, args...).Scan(&returned); err != nil {
		return nil, eris.Wrapf(err, "database: insert lead into %s", r.Table)
	}

	rec := &entity.LeadRecord{
		ID:     returned,
		Email:  lead.Email,
		Name:   lead.Name,
		Note:   lead.Note,
		Source: lead.Source,
	}
	if mapping.StatusKind != entity.StatusKindAbsent {
		rec.Status = entity.LeadStatusNew
	}
	return rec, nil
}

func (r *LeadRepository) insertQuery(id string, values []entity.FieldValue) (string, []any) {
	cols := []string{pq.QuoteIdentifier(r.IDColumn)}
	placeholders := []string{"$1"}
	args := []any{id}
	for _, v := range values {
		args = append(args, v.Value)
		cols = append(cols, pq.QuoteIdentifier(v.Field.Name))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s::text",
		pq.QuoteIdentifier(r.Table),
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		pq.QuoteIdentifier(r.IDColumn),
	)
	return query, args
}
