package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/aigrader/pkg/models"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrDuplicateKey      = errors.New("duplicate key violation")
	ErrInvalidTransition = errors.New("invalid task status transition")
)

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetDefaultTenant(ctx context.Context) (*models.Tenant, error)
	GetTenantByName(ctx context.Context, name string) (*models.Tenant, error)
	CreateTenant(ctx context.Context, tenant *models.Tenant) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error

	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Task, error)
	FindTask(ctx context.Context, id uuid.UUID) (*models.Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]*models.Task, int, error)
	UpdateTaskStatus(ctx context.Context, id uuid.UUID, status string, opts ...TaskUpdateOption) error
	PurgeTasksBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type TaskFilter struct {
	TenantID uuid.UUID
	Kind     string
	Status   string
	Page     int
	Limit    int
}

type taskUpdateParams struct {
	ErrorMessage *string
}

type TaskUpdateOption func(*taskUpdateParams)

func WithErrorMessage(msg string) TaskUpdateOption {
	return func(p *taskUpdateParams) {
		p.ErrorMessage = &msg
	}
}
