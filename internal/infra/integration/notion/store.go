package notion

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/xavierca1/lead-relay/internal/entity"
)

// maxTextLength is Notion's limit for one rich text content object.
const maxTextLength = 2000

// Store keeps leads as pages of one Notion database.
type Store struct {
	client *Client
}

func NewStore(client *Client) *Store {
	return &Store{client: client}
}

func (s *Store) GetSchema(ctx context.Context) (*entity.Schema, error) {
	db, err := s.client.retrieveDatabase(ctx)
	if err != nil {
		return nil, err
	}

	schema := &entity.Schema{Properties: make([]entity.Property, 0, len(db.Properties))}
	for key, prop := range db.Properties {
		name := prop.Name
		if name == "" {
			name = key
		}
		schema.Properties = append(schema.Properties, entity.Property{Name: name, Kind: propertyKind(prop.Type)})
	}
	return schema, nil
}

func (s *Store) FindByEmail(ctx context.Context, mapping *entity.SchemaMapping, email string) (*entity.LeadRecord, error) {
	filter, err := emailFilter(mapping.Email, email)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.queryDatabase(ctx, queryRequest{Filter: filter, PageSize: 1})
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return toLeadRecord(resp.Results[0], mapping), nil
}

func (s *Store) CreateRecord(ctx context.Context, mapping *entity.SchemaMapping, lead entity.LeadSubmission) (*entity.LeadRecord, error) {
	req := createPageRequest{
		Parent:     pageParent{DatabaseID: s.client.DatabaseID()},
		Properties: buildProperties(mapping, lead),
	}

	page, err := s.client.createPage(ctx, req)
	if err != nil {
		return nil, err
	}
	if page.ID == "" {
		return nil, eris.New("notion: created page has no id")
	}

	rec := toLeadRecord(*page, mapping)
	// the create response echoes properties; fill gaps from what was sent
	if rec.Email == "" {
		rec.Email = lead.Email
	}
	if rec.Name == "" {
		rec.Name = lead.Name
	}
	if rec.Status == "" && mapping.StatusKind != entity.StatusKindAbsent {
		rec.Status = entity.LeadStatusNew
	}
	return rec, nil
}

func propertyKind(notionType string) entity.PropertyKind {
	switch notionType {
	case "title":
		return entity.PropertyKindTitle
	case "rich_text":
		return entity.PropertyKindRichText
	case "email":
		return entity.PropertyKindEmail
	case "select":
		return entity.PropertyKindSelect
	case "status":
		return entity.PropertyKindStatus
	default:
		return entity.PropertyKindOther
	}
}

func emailFilter(field entity.Field, email string) (*queryFilter, error) {
	filter := &queryFilter{Property: field.Name}
	eq := &textFilter{Equals: email}
	switch field.Kind {
	case entity.PropertyKindEmail:
		filter.Email = eq
	case entity.PropertyKindRichText:
		filter.RichText = eq
	case entity.PropertyKindTitle:
		filter.Title = eq
	default:
		return nil, eris.Errorf("notion: cannot filter on property %q of kind %s", field.Name, field.Kind)
	}
	return filter, nil
}

func buildProperties(mapping *entity.SchemaMapping, lead entity.LeadSubmission) map[string]propertyValue {
	props := make(map[string]propertyValue)
	for _, fv := range mapping.Values(lead) {
		switch fv.Field.Kind {
		case entity.PropertyKindTitle:
			props[fv.Field.Name] = propertyValue{Title: textValue(fv.Value)}
		case entity.PropertyKindRichText:
			props[fv.Field.Name] = propertyValue{RichText: textValue(fv.Value)}
		case entity.PropertyKindEmail:
			v := fv.Value
			props[fv.Field.Name] = propertyValue{Email: &v}
		case entity.PropertyKindSelect:
			props[fv.Field.Name] = propertyValue{Select: &selectValue{Name: fv.Value}}
		case entity.PropertyKindStatus:
			props[fv.Field.Name] = propertyValue{Status: &selectValue{Name: fv.Value}}
		}
	}
	return props
}

func textValue(s string) []richText {
	if utf8.RuneCountInString(s) > maxTextLength {
		s = string([]rune(s)[:maxTextLength])
	}
	return []richText{{Type: "text", Text: &textContent{Content: s}}}
}

func toLeadRecord(page pageResponse, mapping *entity.SchemaMapping) *entity.LeadRecord {
	rec := &entity.LeadRecord{
		ID:  page.ID,
		URL: page.URL,
	}
	if rec.URL == "" && page.ID != "" {
		rec.URL = "https://www.notion.so/" + strings.ReplaceAll(page.ID, "-", "")
	}
	if mapping == nil {
		return rec
	}

	rec.Email = readProperty(page.Properties, mapping.Email)
	rec.Name = readProperty(page.Properties, mapping.Title)
	rec.Note = readProperty(page.Properties, mapping.Note)
	rec.Source = readProperty(page.Properties, mapping.Source)
	if status := readProperty(page.Properties, mapping.Status); status != "" {
		rec.Status = entity.LeadStatus(status)
	}
	return rec
}

func readProperty(props map[string]propertyValue, field entity.Field) string {
	if !field.Present() {
		return ""
	}
	v, ok := props[field.Name]
	if !ok {
		return ""
	}
	switch {
	case v.Email != nil:
		return *v.Email
	case v.Select != nil:
		return v.Select.Name
	case v.Status != nil:
		return v.Status.Name
	case len(v.Title) > 0:
		return plainText(v.Title)
	case len(v.RichText) > 0:
		return plainText(v.RichText)
	}
	return ""
}

func plainText(parts []richText) string {
	var b strings.Builder
	for _, p := range parts {
		if p.PlainText != "" {
			b.WriteString(p.PlainText)
		} else if p.Text != nil {
			b.WriteString(p.Text.Content)
		}
	}
	return strings.TrimSpace(b.String())
}
