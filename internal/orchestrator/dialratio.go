// Package orchestrator implements the Dialer Orchestrator (spec §4.F,
// "the heart"): the per-campaign control loop that samples operator
// availability and campaign stats, computes a dial ratio by
// proportional feedback on the abandon rate, launches new calls
// through the Telephony port, and routes AMD outcomes to leads and
// operators. Grounded on the platform's campaign/sweeper.go for the
// tick/goroutine shape and on original_source's dialer_orchestrator.py
// for the control law itself.
package orchestrator

import "dialerctl/internal/domain"

// RatioConfig holds the control law's tunable constants (spec §9:
// "Control loop feedback constants... expose as configuration").
type RatioConfig struct {
	BaseDialRatio     float64
	MinDialRatio      float64
	MaxDialRatio      float64
	TargetAbandonRate float64
}

// DefaultRatioConfig matches spec.md §6's defaults.
func DefaultRatioConfig() RatioConfig {
	return RatioConfig{
		BaseDialRatio:     3.0,
		MinDialRatio:      1.0,
		MaxDialRatio:      5.0,
		TargetAbandonRate: 0.03,
	}
}

// sampleFloor is the minimum (connected+abandoned) sample size before
// the control law trusts the observed abandon rate over the base ratio.
const sampleFloor = 10

// sensitivity is the proportional gain applied to the abandon-rate
// error term.
const sensitivity = 10.0

// CalculateDialRatio implements the proportional control law: below
// the sample floor it returns the base ratio; above it, it nudges the
// ratio up or down by the abandon-rate error, clamped to [min,max].
func (c RatioConfig) CalculateDialRatio(stats domain.CampaignStats) float64 {
	totalCalls := stats.Connected + stats.AbandonedLeads
	if totalCalls < sampleFloor {
		return c.BaseDialRatio
	}

	current := stats.AbandonRate()
	var adjustment float64
	if current > 0 {
		errorTerm := c.TargetAbandonRate - current
		adjustment = 1.0 + errorTerm*sensitivity
	} else {
		adjustment = 1.1
	}

	newRatio := c.BaseDialRatio * adjustment
	if newRatio < c.MinDialRatio {
		return c.MinDialRatio
	}
	if newRatio > c.MaxDialRatio {
		return c.MaxDialRatio
	}
	return newRatio
}

// CalculateCallsToMake computes how many new calls to launch given
// available operators, the effective dial ratio, and calls already in
// flight.
func (c RatioConfig) CalculateCallsToMake(availableOperators int, dialRatio float64, pendingCalls int) int {
	if availableOperators <= 0 {
		return 0
	}
	targetCalls := int(float64(availableOperators) * dialRatio)
	callsNeeded := targetCalls - pendingCalls
	if callsNeeded < 0 {
		return 0
	}
	return callsNeeded
}

// ShouldPauseDialing reports whether the current abandon rate exceeds
// twice the target, in which case launches pause this tick without
// stopping the campaign.
func (c RatioConfig) ShouldPauseDialing(stats domain.CampaignStats) bool {
	return stats.AbandonRate() > c.TargetAbandonRate*2
}

// HealthStatus classifies the current abandon rate against the target.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
)

// Health is the orchestrator's health view for a campaign.
type Health struct {
	Status               HealthStatus
	CurrentAbandonRate   float64
	TargetAbandonRate    float64
	RecommendedDialRatio float64
}

func (c RatioConfig) GetDialingHealth(stats domain.CampaignStats) Health {
	current := stats.AbandonRate()
	var status HealthStatus
	switch {
	case current <= c.TargetAbandonRate:
		status = HealthHealthy
	case current <= c.TargetAbandonRate*1.5:
		status = HealthWarning
	default:
		status = HealthCritical
	}
	return Health{
		Status:               status,
		CurrentAbandonRate:   current,
		TargetAbandonRate:    c.TargetAbandonRate,
		RecommendedDialRatio: c.CalculateDialRatio(stats),
	}
}
