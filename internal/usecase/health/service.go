package health

import (
	"context"
	"sort"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status  Status
	Checks  map[string]CheckResult
	Version string
}

type check struct {
	name string
	fn   func(ctx context.Context) error
}

// Service coordinates health checks.
type Service struct {
	checks  []check
	version string
}

// New creates a Service that always checks the database.
func New(db Pinger) *Service {
	return &Service{checks: []check{{name: "database", fn: db.Ping}}}
}

// WithProvider adds a model provider check. A nil checker is ignored.
func (s *Service) WithProvider(name string, p ProviderChecker) *Service {
	if p != nil {
		s.checks = append(s.checks, check{name: name, fn: p.HealthCheck})
	}
	return s
}

// WithStore adds a storage check. A nil pinger is ignored.
func (s *Service) WithStore(name string, p Pinger) *Service {
	if p != nil {
		s.checks = append(s.checks, check{name: name, fn: p.Ping})
	}
	return s
}

// WithVersion sets the build version reported alongside the checks.
func (s *Service) WithVersion(v string) *Service {
	s.version = v
	return s
}

// Names lists the registered checks in sorted order.
func (s *Service) Names() []string {
	names := make([]string, len(s.checks))
	for i, c := range s.checks {
		names[i] = c.name
	}
	sort.Strings(names)
	return names
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.checks))
	status := Healthy

	for _, c := range s.checks {
		if err := c.fn(ctx); err != nil {
			checks[c.name] = CheckError
			status = Degraded
			continue
		}
		checks[c.name] = CheckOK
	}

	return Report{Status: status, Checks: checks, Version: s.version}
}
