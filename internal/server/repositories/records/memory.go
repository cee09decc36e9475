package records

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/mailvault/internal/common"
	"github.com/dmitrijs2005/mailvault/internal/server/models"
)

// MemoryRepository keeps records in process memory. Updates are serialized
// by a mutex, so UpdateCalendars never conflicts.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*models.UserRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*models.UserRecord)}
}

func cloneRecord(rec *models.UserRecord) *models.UserRecord {
	c := *rec
	c.Calendars = models.CloneCalendars(rec.Calendars)
	return &c
}

func (r *MemoryRepository) Get(_ context.Context, email string) (*models.UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[email]
	if !ok {
		return nil, common.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (r *MemoryRepository) Put(_ context.Context, email string, fields models.RecordFields) error {
	if fields.Empty() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[email]
	if !ok {
		rec = &models.UserRecord{Email: email, Calendars: []models.Calendar{}}
		r.records[email] = rec
	}
	if fields.CredentialCiphertext != nil {
		rec.CredentialCiphertext = *fields.CredentialCiphertext
	}
	if fields.Calendars != nil {
		rec.Calendars = models.CloneCalendars(*fields.Calendars)
	}
	rec.Version++
	return nil
}

func (r *MemoryRepository) ListCalendars(ctx context.Context, email string) ([]models.Calendar, error) {
	rec, err := r.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	return rec.Calendars, nil
}

func (r *MemoryRepository) SetCalendars(ctx context.Context, email string, cals []models.Calendar) error {
	_, err := r.UpdateCalendars(ctx, email, func([]models.Calendar) []models.Calendar { return cals })
	return err
}

func (r *MemoryRepository) UpdateCalendars(_ context.Context, email string, fn CalendarsFunc) ([]models.Calendar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[email]
	if !ok {
		return nil, common.ErrNotFound
	}
	rec.Calendars = models.CloneCalendars(fn(models.CloneCalendars(rec.Calendars)))
	rec.Version++
	return models.CloneCalendars(rec.Calendars), nil
}

func (r *MemoryRepository) Delete(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, email)
	return nil
}

func (r *MemoryRepository) Ping(context.Context) error { return nil }

func (r *MemoryRepository) Close() error { return nil }
