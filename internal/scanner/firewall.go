package scanner

import (
	"context"
	"fmt"

	"github.com/zhengda-lu/zerotrace/internal/platform"
)

// FirewallScanner matches firewall rules whose whole name is a candidate key.
type FirewallScanner struct {
	fw platform.Firewall
}

func NewFirewallScanner(fw platform.Firewall) *FirewallScanner {
	return &FirewallScanner{fw: fw}
}

func (s *FirewallScanner) Name() string        { return "Firewall Rules" }
func (s *FirewallScanner) Description() string { return "Windows Firewall rules named after the app" }

func (s *FirewallScanner) Scan(ctx context.Context, req Request) ([]Target, error) {
	rules, err := s.fw.ListFirewallRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list firewall rules: %w", err)
	}
	var targets []Target
	for _, name := range rules {
		if err := ctx.Err(); err != nil {
			return targets, err
		}
		if req.Keys.Matches(name) {
			targets = append(targets, Target{Kind: FirewallRule, Value: name, Source: SourceFirewall, Confidence: Low})
		}
	}
	return targets, nil
}
