// internal/routing/recommend/service_test.go
package recommend

import (
	"context"
	stderrors "errors"
	"testing"

	"leadrouter/internal/common/config"
	"leadrouter/internal/common/errors"
	"leadrouter/internal/common/logger"
	"leadrouter/internal/models"
	"leadrouter/internal/routing/scoring"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeDirectory struct {
	vendors []models.Vendor
	err     error
}

func (f *fakeDirectory) ListActiveVendors(ctx context.Context) ([]models.Vendor, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.Vendor, len(f.vendors))
	copy(out, f.vendors)
	return out, nil
}

func testEngine() *scoring.Engine {
	return scoring.NewEngine(map[string]config.WeightSet{
		"low":    {Specialty: 0.30, Conversion: 0.25, Rating: 0.15, Workload: 0.15, ResponseTime: 0.15},
		"medium": {Specialty: 0.30, Conversion: 0.25, Rating: 0.15, Workload: 0.15, ResponseTime: 0.15},
		"high":   {Workload: 0.30, ResponseTime: 0.25, Specialty: 0.20, Conversion: 0.15, Rating: 0.10},
	})
}

func activeVendor(id string, conversion float64) models.Vendor {
	return models.Vendor{
		ID:                 id,
		Name:               "Vendor " + id,
		Specialties:        []string{"roofing"},
		MaxConcurrentLeads: 10,
		CurrentLoad:        2,
		ConversionRate:     conversion,
		AvgResponseMinutes: 30,
		AvgRating:          4.0,
		Active:             true,
	}
}

func newService(dir Directory) *Service {
	return NewService(dir, testEngine(), logger.NewNoOpLogger())
}

// ==========================
// Recommend Tests
// ==========================

func TestService_Recommend_RanksAndBadgesTopPick(t *testing.T) {
	dir := &fakeDirectory{vendors: []models.Vendor{
		activeVendor("v1", 0.3),
		activeVendor("v2", 0.9),
		activeVendor("v3", 0.5),
	}}
	svc := newService(dir)

	ranked, err := svc.Recommend(context.Background(), models.RequestContext{
		ServiceType: "roofing",
		Urgency:     models.UrgencyMedium,
	}, "")

	assert.NoError(t, err)
	assert.Len(t, ranked, 3)
	assert.Equal(t, "v2", ranked[0].VendorID)
	assert.Equal(t, models.BadgeTopPick, ranked[0].Badge)
	assert.Empty(t, ranked[1].Badge)
	assert.Empty(t, ranked[2].Badge)
}

func TestService_Recommend_FiltersInactiveVendors(t *testing.T) {
	inactive := activeVendor("sleeping", 0.99)
	inactive.Active = false

	dir := &fakeDirectory{vendors: []models.Vendor{
		inactive,
		activeVendor("awake", 0.4),
	}}
	svc := newService(dir)

	ranked, err := svc.Recommend(context.Background(), models.RequestContext{ServiceType: "roofing"}, "")

	assert.NoError(t, err)
	assert.Len(t, ranked, 1)
	assert.Equal(t, "awake", ranked[0].VendorID)
}

func TestService_Recommend_ExcludesRejectingVendor(t *testing.T) {
	dir := &fakeDirectory{vendors: []models.Vendor{
		activeVendor("rejected-us", 0.9),
		activeVendor("next-best", 0.5),
	}}
	svc := newService(dir)

	ranked, err := svc.Recommend(context.Background(), models.RequestContext{ServiceType: "roofing"}, "rejected-us")

	assert.NoError(t, err)
	assert.Len(t, ranked, 1)
	assert.Equal(t, "next-best", ranked[0].VendorID)
}

func TestService_Recommend_NoVendorsAvailable(t *testing.T) {
	tests := []struct {
		name    string
		vendors []models.Vendor
		exclude string
	}{
		{"empty directory", nil, ""},
		{"all inactive", func() []models.Vendor {
			v := activeVendor("v1", 0.5)
			v.Active = false
			return []models.Vendor{v}
		}(), ""},
		{"only vendor excluded", []models.Vendor{activeVendor("v1", 0.5)}, "v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(&fakeDirectory{vendors: tt.vendors})

			ranked, err := svc.Recommend(context.Background(), models.RequestContext{ServiceType: "roofing"}, tt.exclude)

			assert.Nil(t, ranked)
			assert.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeNoVendorsAvailable))
		})
	}
}

func TestService_Recommend_EmptyServiceTypeRejected(t *testing.T) {
	svc := newService(&fakeDirectory{vendors: []models.Vendor{activeVendor("v1", 0.5)}})

	ranked, err := svc.Recommend(context.Background(), models.RequestContext{ServiceType: "   "}, "")

	assert.Nil(t, ranked)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidRequestContext))
}

func TestService_Recommend_DefaultsUrgencyToMedium(t *testing.T) {
	dir := &fakeDirectory{vendors: []models.Vendor{activeVendor("v1", 0.5)}}
	svc := newService(dir)

	blank, err := svc.Recommend(context.Background(), models.RequestContext{ServiceType: "roofing"}, "")
	assert.NoError(t, err)

	medium, err := svc.Recommend(context.Background(), models.RequestContext{
		ServiceType: "roofing",
		Urgency:     models.UrgencyMedium,
	}, "")
	assert.NoError(t, err)

	assert.InDelta(t, medium[0].Score, blank[0].Score, 1e-9)
}

func TestService_Recommend_DirectoryFailure(t *testing.T) {
	svc := newService(&fakeDirectory{err: stderrors.New("connection refused")})

	ranked, err := svc.Recommend(context.Background(), models.RequestContext{ServiceType: "roofing"}, "")

	assert.Nil(t, ranked)
	assert.True(t, errors.IsCode(err, errors.ErrCodePersistenceFailure))
}
