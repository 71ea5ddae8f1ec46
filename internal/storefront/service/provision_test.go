package service

import (
	"testing"
	"time"

	"github.com/sakuracloud/storefront/internal/storefront/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildServices_OnePerLine(t *testing.T) {
	prov := NewProvisioner()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	order := &models.Order{
		ID:     42,
		UserID: 7,
		Lines: []models.OrderLine{
			{ProductID: 1, Region: "id-jkt", BillingCycle: models.CycleHourly, Price: decimal.NewFromInt(100)},
			{ProductID: 2, Region: "sg-sin", BillingCycle: models.CycleMonthly, Price: decimal.NewFromInt(30000)},
			{ProductID: 3, Region: "jp-tky", BillingCycle: models.CycleYearly, Price: decimal.NewFromInt(300000)},
		},
	}

	services := prov.BuildServices(order, now)

	require.Len(t, services, 3)
	for i, svc := range services {
		assert.Equal(t, int64(42), svc.OrderID)
		assert.Equal(t, int64(7), svc.UserID)
		assert.Equal(t, order.Lines[i].ProductID, svc.ProductID)
		assert.Equal(t, order.Lines[i].Region, svc.Region)
		assert.Equal(t, models.ServiceActive, svc.Status)
		assert.Equal(t, now, svc.StartDate)
	}

	assert.Equal(t, now.Add(time.Hour), services[0].ExpiryDate)
	assert.Equal(t, time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC), services[1].ExpiryDate)
	assert.Equal(t, time.Date(2027, 5, 10, 12, 0, 0, 0, time.UTC), services[2].ExpiryDate)
}

func TestCycleExpiry_MonthEndOverflow(t *testing.T) {
	// Jan 31 + 1 month normalizes past February instead of clamping.
	start := time.Date(2026, 1, 31, 8, 30, 0, 0, time.UTC)

	expiry := CycleExpiry(start, models.CycleMonthly)

	assert.Equal(t, time.Date(2026, 3, 3, 8, 30, 0, 0, time.UTC), expiry)
}

func TestCycleExpiry_LeapYear(t *testing.T) {
	start := time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC)

	expiry := CycleExpiry(start, models.CycleYearly)

	assert.Equal(t, time.Date(2029, 3, 1, 0, 0, 0, 0, time.UTC), expiry)
}

func TestRenewalExpiry_ActiveExtendsFromStoredExpiry(t *testing.T) {
	prov := NewProvisioner()
	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	svc := &models.Service{
		BillingCycle: models.CycleMonthly,
		ExpiryDate:   time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC),
		Status:       models.ServiceActive,
	}

	expiry := prov.RenewalExpiry(svc, now)

	assert.Equal(t, time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC), expiry)
}

func TestRenewalExpiry_LapsedRestartsFromNow(t *testing.T) {
	prov := NewProvisioner()
	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	svc := &models.Service{
		BillingCycle: models.CycleMonthly,
		ExpiryDate:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Status:       models.ServiceExpired,
	}

	expiry := prov.RenewalExpiry(svc, now)

	assert.Equal(t, time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC), expiry)
}
