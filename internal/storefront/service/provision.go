package service

import (
	"time"

	"github.com/sakuracloud/storefront/internal/storefront/models"
)

// Provisioner turns the snapshot lines of a paid order into Service records
// and computes renewal expiries.
type Provisioner struct{}

// NewProvisioner creates a new provisioner
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// BuildServices materializes one active Service per order snapshot line,
// starting now and expiring one billing cycle later. The rows are inserted
// by the settlement transaction, so an order with N lines yields exactly N
// services or none at all.
func (p *Provisioner) BuildServices(order *models.Order, now time.Time) []models.Service {
	services := make([]models.Service, 0, len(order.Lines))
	for _, line := range order.Lines {
		services = append(services, models.Service{
			OrderID:      order.ID,
			UserID:       order.UserID,
			ProductID:    line.ProductID,
			Region:       line.Region,
			BillingCycle: line.BillingCycle,
			StartDate:    now,
			ExpiryDate:   CycleExpiry(now, line.BillingCycle),
			Status:       models.ServiceActive,
		})
	}
	return services
}

// RenewalExpiry computes the expiry a renewal buys. A service renewed while
// still running extends from its stored expiry so no paid time is lost; a
// lapsed service restarts from now so past time is not sold.
func (p *Provisioner) RenewalExpiry(svc *models.Service, now time.Time) time.Time {
	base := svc.ExpiryDate
	if base.Before(now) {
		base = now
	}
	return CycleExpiry(base, svc.BillingCycle)
}

// CycleExpiry returns start advanced by one billing cycle. Month and year
// steps use AddDate, so month-end overflow normalizes forward: Jan 31 plus
// one month lands in early March rather than clamping to Feb 28.
func CycleExpiry(start time.Time, cycle models.BillingCycle) time.Time {
	switch cycle {
	case models.CycleHourly:
		return start.Add(time.Hour)
	case models.CycleYearly:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 1, 0)
	}
}
