package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brickline/brickline-saas/domains/tenants/be/repo"
	"github.com/brickline/brickline-saas/domains/tenants/be/service"
)

type fakeSchemas struct {
	mu      sync.Mutex
	created []string
	dropped []string
	failOn  string
}

func (f *fakeSchemas) EnsureSchema(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name == f.failOn {
		return errors.New("ddl failed")
	}
	f.created = append(f.created, name)
	return nil
}

func (f *fakeSchemas) DropSchema(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped = append(f.dropped, name)
	return nil
}

func newService(t *testing.T, schemas *fakeSchemas) (*service.Service, *repo.MemoryRepository) {
	t.Helper()
	r := repo.NewMemoryRepository()
	return service.New(r, schemas, zap.NewNop(), "brickline.app", 90), r
}

func TestProvisionDerivesSlugDomainAndSchema(t *testing.T) {
	schemas := &fakeSchemas{}
	svc, _ := newService(t, schemas)

	out, err := svc.Provision(context.Background(), service.ProvisionInput{
		AccountID:   uuid.New(),
		AgencyName:  "Best Homes!!",
		ContactInfo: "+2348012345678",
	})
	require.NoError(t, err)

	require.Equal(t, "best_homes", out.Tenant.Slug)
	require.Equal(t, "tenant_best_homes", out.Tenant.SchemaName)
	require.Equal(t, "best_homes.brickline.app", out.Domain)
	require.Equal(t, []string{"tenant_best_homes"}, schemas.created)
}

func TestProvisionStartsTrial(t *testing.T) {
	svc, _ := newService(t, &fakeSchemas{})

	out, err := svc.Provision(context.Background(), service.ProvisionInput{
		AccountID:   uuid.New(),
		AgencyName:  "Acme Estates",
		ContactInfo: "+2348012345678",
	})
	require.NoError(t, err)

	require.True(t, out.Tenant.OnTrial)
	expected := time.Now().UTC().AddDate(0, 0, 90)
	require.WithinDuration(t, expected, out.Tenant.PaidUntil, time.Minute)
}

func TestProvisionRejectsDuplicateDomain(t *testing.T) {
	svc, r := newService(t, &fakeSchemas{})
	ctx := context.Background()

	_, err := svc.Provision(ctx, service.ProvisionInput{
		AccountID:   uuid.New(),
		AgencyName:  "Best Homes",
		ContactInfo: "+2348012345678",
	})
	require.NoError(t, err)

	// Different punctuation, same derived domain.
	_, err = svc.Provision(ctx, service.ProvisionInput{
		AccountID:   uuid.New(),
		AgencyName:  "Best Homes!!",
		ContactInfo: "+2348099999999",
	})
	require.ErrorIs(t, err, service.ErrDomainConflict)
	require.Len(t, r.Tenants(), 1)
}

func TestProvisionRollsBackRegistryOnSchemaFailure(t *testing.T) {
	schemas := &fakeSchemas{failOn: "tenant_bad_agency"}
	svc, r := newService(t, schemas)

	accountID := uuid.New()
	_, err := svc.Provision(context.Background(), service.ProvisionInput{
		AccountID:   accountID,
		AgencyName:  "Bad Agency",
		ContactInfo: "+2348012345678",
	})
	require.Error(t, err)

	require.Empty(t, r.Tenants())
	_, err = svc.ProfileFor(context.Background(), accountID)
	require.ErrorIs(t, err, service.ErrNotFound)
	require.Contains(t, schemas.dropped, "tenant_bad_agency")
}

func TestProvisionRejectsBlankAgency(t *testing.T) {
	svc, _ := newService(t, &fakeSchemas{})

	_, err := svc.Provision(context.Background(), service.ProvisionInput{
		AccountID:  uuid.New(),
		AgencyName: "   ",
	})
	require.ErrorIs(t, err, service.ErrInvalidAgency)
}

func TestTeardownRemovesWorkspace(t *testing.T) {
	schemas := &fakeSchemas{}
	svc, r := newService(t, schemas)
	ctx := context.Background()

	accountID := uuid.New()
	_, err := svc.Provision(ctx, service.ProvisionInput{
		AccountID:   accountID,
		AgencyName:  "Best Homes",
		ContactInfo: "+2348012345678",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Teardown(ctx, accountID))
	require.Empty(t, r.Tenants())
	require.Contains(t, schemas.dropped, "tenant_best_homes")

	// Idempotent for accounts that never owned a workspace.
	require.NoError(t, svc.Teardown(ctx, uuid.New()))
}

func TestResolveDomain(t *testing.T) {
	svc, _ := newService(t, &fakeSchemas{})
	ctx := context.Background()

	_, err := svc.Provision(ctx, service.ProvisionInput{
		AccountID:   uuid.New(),
		AgencyName:  "Best Homes",
		ContactInfo: "+2348012345678",
	})
	require.NoError(t, err)

	space, err := svc.ResolveDomain(ctx, "best_homes.brickline.app")
	require.NoError(t, err)
	require.Equal(t, "best_homes", space.Slug)
	require.Equal(t, "tenant_best_homes", space.SchemaName)

	_, err = svc.ResolveDomain(ctx, "nobody.brickline.app")
	require.ErrorIs(t, err, service.ErrNotFound)
}
