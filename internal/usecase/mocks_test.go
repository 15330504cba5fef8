package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xavierca1/lead-relay/internal/entity"
)

// MockLeadStore
type MockLeadStore struct {
	mock.Mock
}

func (m *MockLeadStore) GetSchema(ctx context.Context) (*entity.Schema, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Schema), args.Error(1)
}

func (m *MockLeadStore) FindByEmail(ctx context.Context, mapping *entity.SchemaMapping, email string) (*entity.LeadRecord, error) {
	args := m.Called(ctx, mapping, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.LeadRecord), args.Error(1)
}

func (m *MockLeadStore) CreateRecord(ctx context.Context, mapping *entity.SchemaMapping, lead entity.LeadSubmission) (*entity.LeadRecord, error) {
	args := m.Called(ctx, mapping, lead)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.LeadRecord), args.Error(1)
}

// MockTransport
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Send(ctx context.Context, subject, body string) error {
	args := m.Called(ctx, subject, body)
	return args.Error(0)
}

// memoryStore is a record store keyed by email that counts its calls.
type memoryStore struct {
	mu      sync.Mutex
	schema  *entity.Schema
	records map[string]*entity.LeadRecord
	seq     int

	schemaCalls int
	findCalls   int
	createCalls int
	lastValues  []entity.FieldValue
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		schema:  notionLikeSchema(),
		records: map[string]*entity.LeadRecord{},
	}
}

func (s *memoryStore) GetSchema(ctx context.Context) (*entity.Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemaCalls++
	return s.schema, nil
}

func (s *memoryStore) FindByEmail(ctx context.Context, mapping *entity.SchemaMapping, email string) (*entity.LeadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	return s.records[email], nil
}

func (s *memoryStore) CreateRecord(ctx context.Context, mapping *entity.SchemaMapping, lead entity.LeadSubmission) (*entity.LeadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	s.seq++
	s.lastValues = mapping.Values(lead)
	rec := &entity.LeadRecord{ID: fmt.Sprintf("r%d", s.seq), Email: lead.Email, Name: lead.Name, Status: entity.LeadStatusNew}
	s.records[lead.Email] = rec
	return rec, nil
}

func (s *memoryStore) calls() (int, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schemaCalls, s.findCalls, s.createCalls
}

// recordingTransport records what it was asked to send.
type recordingTransport struct {
	mu    sync.Mutex
	sent  []string
	err   error
	delay time.Duration
}

func (t *recordingTransport) Send(ctx context.Context, subject, body string) error {
	if t.delay > 0 {
		select {
		case <-time.After(t.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, subject)
	return t.err
}

func (t *recordingTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

var errSMTPDown = errors.New("dial tcp 127.0.0.1:587: connect: connection refused")

func notionLikeSchema() *entity.Schema {
	return &entity.Schema{Properties: []entity.Property{
		{Name: "Name", Kind: entity.PropertyKindTitle},
		{Name: "Email", Kind: entity.PropertyKindEmail},
		{Name: "Note", Kind: entity.PropertyKindRichText},
		{Name: "Source", Kind: entity.PropertyKindRichText},
		{Name: "Status", Kind: entity.PropertyKindSelect},
	}}
}
