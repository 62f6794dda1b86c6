package service

import (
	"time"

	"github.com/marketbridge/identity-session/internal/core/domain"
)

// TrialPolicy is the subscription every new account starts with.
type TrialPolicy struct {
	Plan     string
	Duration time.Duration
}

var DefaultTrialPolicy = TrialPolicy{Plan: "pro", Duration: 14 * 24 * time.Hour}

// Subscription returns a trial subscription starting at now.
func (p TrialPolicy) Subscription(now time.Time) *domain.Subscription {
	end := now.Add(p.Duration)
	return &domain.Subscription{Plan: p.Plan, IsTrial: true, EndsAt: &end}
}
