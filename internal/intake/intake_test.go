package intake

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"architect/internal/domain/lead"
	apperrors "architect/internal/errors"
	"architect/internal/leads/memorystore"
	"architect/internal/localstore"
	"architect/internal/logging"
	"architect/internal/observability"
)

type countingStore struct {
	lead.Store
	inserts int
	err     error
}

func (c *countingStore) InsertIfAbsent(ctx context.Context, record *lead.Lead) (*lead.Lead, error) {
	c.inserts++
	if c.err != nil {
		return nil, c.err
	}
	return c.Store.InsertIfAbsent(ctx, record)
}

func validProfile() lead.Profile {
	return lead.Profile{
		FirstName: "Lerato",
		LastName:  "Dlamini",
		Email:     "  402113377@MY.richfield.ac.za ",
		Program:   "Diploma in Information Technology",
	}
}

func newTestService(t *testing.T, opts ...Option) (*Service, *countingStore, localstore.Store) {
	t.Helper()
	local, err := localstore.NewMemory(8)
	require.NoError(t, err)
	leads := &countingStore{Store: memorystore.New()}
	return NewService(leads, local, append([]Option{WithLogger(logging.Nop())}, opts...)...), leads, local
}

func TestSubmitCreatesLeadAndCachesProfile(t *testing.T) {
	svc, leads, local := newTestService(t)
	ctx := context.Background()

	res, err := svc.Submit(ctx, "device-1", validProfile())
	require.NoError(t, err)
	assert.Equal(t, QuizPath, res.Redirect)
	assert.NotEmpty(t, res.LeadID)
	assert.Equal(t, 1, leads.inserts)

	var leadID string
	require.NoError(t, localstore.GetJSON(ctx, local, "device-1", localstore.KeyLeadID, &leadID))
	assert.Equal(t, res.LeadID, leadID)

	var cached lead.Profile
	require.NoError(t, localstore.GetJSON(ctx, local, "device-1", localstore.KeyProfile, &cached))
	assert.Equal(t, "402113377@my.richfield.ac.za", cached.Email)
	assert.Equal(t, lead.DefaultInstitution, cached.Campus)
	assert.Equal(t, lead.DefaultUserCategory, cached.UserCategory)

	stored, err := leads.FindByEmail(ctx, "402113377@my.richfield.ac.za")
	require.NoError(t, err)
	assert.Equal(t, "Lerato", stored.FirstName)
	assert.Equal(t, lead.DefaultInstitution, stored.InstitutionName)
}

func TestSubmitRejectsBeforeTouchingStore(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(*lead.Profile)
		check func(t *testing.T, err error)
	}{
		{
			name: "missing first name",
			edit: func(p *lead.Profile) { p.FirstName = " " },
			check: func(t *testing.T, err error) {
				var v *apperrors.ValidationError
				require.ErrorAs(t, err, &v)
				assert.Equal(t, "firstName", v.Field)
			},
		},
		{
			name: "unknown programme",
			edit: func(p *lead.Profile) { p.Program = "Bachelor of Arts" },
			check: func(t *testing.T, err error) {
				assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
			},
		},
		{
			name: "personal email",
			edit: func(p *lead.Profile) { p.Email = "lerato@gmail.com" },
			check: func(t *testing.T, err error) {
				var p *apperrors.PolicyError
				require.ErrorAs(t, err, &p)
				assert.Equal(t, lead.IntakeDeniedMessage, p.Message)
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, leads, local := newTestService(t)
			profile := validProfile()
			tc.edit(&profile)

			_, err := svc.Submit(context.Background(), "device-1", profile)
			require.Error(t, err)
			tc.check(t, err)
			assert.Zero(t, leads.inserts)

			has, err := localstore.Has(context.Background(), local, "device-1", localstore.KeyProfile)
			require.NoError(t, err)
			assert.False(t, has)
		})
	}
}

func TestSubmitDuplicateRedirectsToLogin(t *testing.T) {
	svc, _, local := newTestService(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, "device-1", validProfile())
	require.NoError(t, err)

	_, err = svc.Submit(ctx, "device-2", validProfile())
	require.ErrorIs(t, err, apperrors.ErrLeadExists)
	assert.Equal(t, "/login", apperrors.RedirectFor(err))
	assert.Equal(t, apperrors.MessageLeadExists, apperrors.UserMessage(err))

	has, err := localstore.Has(ctx, local, "device-2", localstore.KeyLeadID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSubmitStoreFailureIsGeneric(t *testing.T) {
	svc, leads, _ := newTestService(t)
	leads.err = errors.New("connection reset by peer")

	_, err := svc.Submit(context.Background(), "device-1", validProfile())
	require.Error(t, err)
	assert.Equal(t, apperrors.MessageGeneric, apperrors.UserMessage(err))
	assert.Empty(t, apperrors.RedirectFor(err))
}

func TestSubmitRecordsOutcomeMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	metrics, err := observability.NewMetricsCollectorWithReader(reader)
	require.NoError(t, err)
	svc, _, _ := newTestService(t, WithMetrics(metrics))
	ctx := context.Background()

	_, _ = svc.Submit(ctx, "device-1", validProfile())
	_, _ = svc.Submit(ctx, "device-2", validProfile())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	outcomes := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "architect.leads.total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				outcome, _ := dp.Attributes.Value("outcome")
				outcomes[outcome.AsString()] = dp.Value
			}
		}
	}
	assert.Equal(t, int64(1), outcomes[OutcomeCreated])
	assert.Equal(t, int64(1), outcomes[OutcomeDuplicate])
}

func TestSubmitDropsVectorLeftOnDevice(t *testing.T) {
	svc, _, local := newTestService(t)
	ctx := context.Background()
	require.NoError(t, localstore.SetJSON(ctx, local, "device-1", localstore.KeyVector, []float64{4, 1, 0, 2, 3}))

	_, err := svc.Submit(ctx, "device-1", validProfile())
	require.NoError(t, err)

	has, err := localstore.Has(ctx, local, "device-1", localstore.KeyVector)
	require.NoError(t, err)
	assert.False(t, has, "a new lead must start without the previous quiz's vector")
	has, err = localstore.Has(ctx, local, "device-1", localstore.KeyProfile)
	require.NoError(t, err)
	assert.True(t, has)
}

type failingLocal struct {
	localstore.Store
	failKey string
}

func (f *failingLocal) Set(ctx context.Context, device, key string, value []byte) error {
	if key == f.failKey {
		return errors.New("redis: connection refused")
	}
	return f.Store.Set(ctx, device, key, value)
}

type errorLog struct {
	logging.Logger
	errors []string
}

func (l *errorLog) Error(format string, args ...any) {
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

func TestSubmitReportsLeadSavedWithoutDeviceCache(t *testing.T) {
	mem, err := localstore.NewMemory(8)
	require.NoError(t, err)
	leads := memorystore.New()
	logger := &errorLog{Logger: logging.Nop()}
	svc := NewService(leads, &failingLocal{Store: mem, failKey: localstore.KeyProfile}, WithLogger(logger))
	ctx := context.Background()

	_, err = svc.Submit(ctx, "device-1", validProfile())
	require.Error(t, err)
	assert.Equal(t, apperrors.MessageGeneric, apperrors.UserMessage(err))

	stored, err := leads.FindByEmail(ctx, "402113377@my.richfield.ac.za")
	require.NoError(t, err)
	require.Len(t, logger.errors, 1)
	assert.Contains(t, logger.errors[0], stored.ID)
	assert.Contains(t, logger.errors[0], "device-1 was not updated")
}
