package scanner

import (
	"context"

	"github.com/zhengda-lu/zerotrace/internal/platform"
)

// RegistryRoot is a hive-qualified branch whose subkeys are vendor keys.
type RegistryRoot struct {
	Hive platform.Hive
	Path string
}

// DefaultVendorRoots are the software branches of both hives, including the
// 32-bit view of HKLM.
var DefaultVendorRoots = []RegistryRoot{
	{platform.LocalMachine, `SOFTWARE`},
	{platform.LocalMachine, `SOFTWARE\WOW6432Node`},
	{platform.CurrentUser, `SOFTWARE`},
}

// RegistryScanner matches vendor and product keys under the software branches.
type RegistryScanner struct {
	reg   platform.Registry
	roots []RegistryRoot
}

func NewRegistryScanner(reg platform.Registry, roots ...RegistryRoot) *RegistryScanner {
	if len(roots) == 0 {
		roots = DefaultVendorRoots
	}
	return &RegistryScanner{reg: reg, roots: roots}
}

func (s *RegistryScanner) Name() string        { return "Registry" }
func (s *RegistryScanner) Description() string { return "Vendor and product keys under SOFTWARE" }

func (s *RegistryScanner) Scan(ctx context.Context, req Request) ([]Target, error) {
	var targets []Target
	for _, root := range s.roots {
		if err := ctx.Err(); err != nil {
			return targets, err
		}
		names, err := s.reg.SubKeys(root.Hive, root.Path)
		if err != nil {
			continue
		}
		for _, name := range names {
			if req.Keys.Matches(name) {
				targets = append(targets, Target{
					Kind:       RegistryKey,
					Value:      platform.KeyPath(root.Hive, root.Path+`\`+name),
					Source:     SourceVendorKey,
					Confidence: Medium,
				})
			}
		}
	}
	return targets, nil
}
