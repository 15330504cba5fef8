package usecase

import (
	"context"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xavierca1/lead-relay/internal/entity"
)

type SchemaSource interface {
	GetSchema(ctx context.Context) (*entity.Schema, error)
}

// SchemaResolver fetches the store schema once and keeps the derived
// mapping for the life of the process. Concurrent first calls share one
// fetch; a later repeat after Invalidate stores an equivalent value.
type SchemaResolver struct {
	source  SchemaSource
	cached  atomic.Pointer[entity.SchemaMapping]
	group   singleflight.Group
	timeout time.Duration
}

func NewSchemaResolver(source SchemaSource) *SchemaResolver {
	return &SchemaResolver{source: source, timeout: DefaultSchemaTimeout}
}

// DefaultSchemaTimeout bounds one shared schema fetch.
const DefaultSchemaTimeout = 15 * time.Second

// Resolve returns the cached mapping or joins the in-flight fetch. The
// fetch itself is not tied to any one caller; each caller stops waiting
// when its own ctx is done.
func (r *SchemaResolver) Resolve(ctx context.Context) (*entity.SchemaMapping, error) {
	if m := r.cached.Load(); m != nil {
		return m, nil
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan("schema", func() (any, error) {
		if m := r.cached.Load(); m != nil {
			return m, nil
		}
		getCtx, cancel := context.WithTimeout(fetchCtx, r.timeout)
		defer cancel()

		schema, err := r.source.GetSchema(getCtx)
		if err != nil {
			return nil, &TechnicalError{Code: CodeSchemaError, Message: err.Error(), Err: err}
		}
		m := BuildSchemaMapping(schema)
		r.cached.Store(m)
		zap.L().Info("schema: mapping resolved",
			zap.String("title", m.Title.Name),
			zap.String("email", m.Email.Name),
			zap.String("note", m.Note.Name),
			zap.String("source", m.Source.Name),
			zap.String("status", m.Status.Name),
			zap.String("status_kind", string(m.StatusKind)),
		)
		return m, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*entity.SchemaMapping), nil
	case <-ctx.Done():
		return nil, &TechnicalError{Code: CodeSchemaError, Message: ctx.Err().Error(), Err: ctx.Err()}
	}
}

// Invalidate drops the cached mapping; call it when the store is
// reconfigured.
func (r *SchemaResolver) Invalidate() {
	r.cached.Store(nil)
}

type fieldRule struct {
	target func(m *entity.SchemaMapping) *entity.Field
	// semantic is a kind that identifies the field on its own.
	semantic entity.PropertyKind
	aliases  []string
	// kinds accepted for an alias match, preferred first.
	kinds    []entity.PropertyKind
	// fallback kinds, tried in order when neither rule above matched.
	fallback []entity.PropertyKind
}

var fieldRules = []fieldRule{
	{
		target:   func(m *entity.SchemaMapping) *entity.Field { return &m.Title },
		semantic: entity.PropertyKindTitle,
		aliases:  []string{"Name", "Title", "Lead", "Full Name"},
		kinds:    []entity.PropertyKind{entity.PropertyKindTitle, entity.PropertyKindRichText},
	},
	{
		target:   func(m *entity.SchemaMapping) *entity.Field { return &m.Email },
		semantic: entity.PropertyKindEmail,
		aliases:  []string{"Email", "E-Mail", "Mail", "Email Address"},
		kinds:    []entity.PropertyKind{entity.PropertyKindEmail, entity.PropertyKindRichText},
	},
	{
		target:   func(m *entity.SchemaMapping) *entity.Field { return &m.Status },
		aliases:  []string{"Status", "Stage", "State"},
		kinds:    []entity.PropertyKind{entity.PropertyKindSelect, entity.PropertyKindStatus, entity.PropertyKindRichText},
		fallback: []entity.PropertyKind{entity.PropertyKindSelect, entity.PropertyKindStatus},
	},
	{
		target:   func(m *entity.SchemaMapping) *entity.Field { return &m.Note },
		aliases:  []string{"Note", "Notes", "Message", "Comment"},
		kinds:    []entity.PropertyKind{entity.PropertyKindRichText},
		fallback: []entity.PropertyKind{entity.PropertyKindRichText},
	},
	{
		target:   func(m *entity.SchemaMapping) *entity.Field { return &m.Source },
		aliases:  []string{"Source", "Origin", "Channel", "Referrer"},
		kinds:    []entity.PropertyKind{entity.PropertyKindRichText, entity.PropertyKindSelect},
		fallback: []entity.PropertyKind{entity.PropertyKindRichText},
	},
}

// BuildSchemaMapping maps schema onto the logical lead fields. It is a pure
// function of the declared properties, independent of their order.
//
// Rules run in three passes over the unclaimed properties: semantic kind
// (title, email), alias name, then first property of the fallback kind.
// A property backs at most one logical field.
func BuildSchemaMapping(schema *entity.Schema) *entity.SchemaMapping {
	var props []entity.Property
	if schema != nil {
		props = slices.Clone(schema.Properties)
	}
	slices.SortStableFunc(props, func(a, b entity.Property) int {
		return strings.Compare(a.Name, b.Name)
	})

	m := &entity.SchemaMapping{}
	claimed := make(map[string]bool, len(props))

	pick := func(match func(p entity.Property) bool) (entity.Field, bool) {
		for _, p := range props {
			if p.Name == "" || claimed[p.Name] || !match(p) {
				continue
			}
			claimed[p.Name] = true
			return entity.Field{Name: p.Name, Kind: p.Kind}, true
		}
		return entity.Field{}, false
	}
	assign := func(rule fieldRule, match func(p entity.Property) bool) {
		field := rule.target(m)
		if field.Present() {
			return
		}
		if f, ok := pick(match); ok {
			*field = f
		}
	}

	for _, rule := range fieldRules {
		if rule.semantic == "" {
			continue
		}
		assign(rule, func(p entity.Property) bool {
			return p.Kind == rule.semantic && hasAlias(rule.aliases, p.Name)
		})
		assign(rule, func(p entity.Property) bool { return p.Kind == rule.semantic })
	}

	for _, rule := range fieldRules {
		for _, kind := range rule.kinds {
			assign(rule, func(p entity.Property) bool {
				return p.Kind == kind && hasAlias(rule.aliases, p.Name)
			})
		}
	}

	for _, rule := range fieldRules {
		for _, kind := range rule.fallback {
			assign(rule, func(p entity.Property) bool { return p.Kind == kind })
		}
	}

	switch m.Status.Kind {
	case entity.PropertyKindSelect, entity.PropertyKindStatus:
		m.StatusKind = entity.StatusKindSelect
	case entity.PropertyKindRichText:
		m.StatusKind = entity.StatusKindFreeText
	default:
		m.Status = entity.Field{}
		m.StatusKind = entity.StatusKindAbsent
	}

	return m
}

func hasAlias(aliases []string, name string) bool {
	name = strings.TrimSpace(name)
	for _, a := range aliases {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}
