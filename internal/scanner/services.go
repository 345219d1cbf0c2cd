package scanner

import (
	"context"
	"fmt"

	"github.com/zhengda-lu/zerotrace/internal/platform"
)

// ServiceScanner matches installed services by short or display name.
type ServiceScanner struct {
	svc platform.Services
}

func NewServiceScanner(svc platform.Services) *ServiceScanner {
	return &ServiceScanner{svc: svc}
}

func (s *ServiceScanner) Name() string        { return "Services" }
func (s *ServiceScanner) Description() string { return "Windows services registered by the app" }

func (s *ServiceScanner) Scan(ctx context.Context, req Request) ([]Target, error) {
	services, err := s.svc.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	var targets []Target
	for _, info := range services {
		if err := ctx.Err(); err != nil {
			return targets, err
		}
		if req.Keys.Matches(info.Name) || req.Keys.Matches(info.DisplayName) {
			targets = append(targets, Target{Kind: Service, Value: info.Name, Source: SourceService, Confidence: Medium})
		}
	}
	return targets, nil
}
