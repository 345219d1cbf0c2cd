package scanner

import (
	"github.com/zhengda-lu/zerotrace/internal/platform"
	"github.com/zhengda-lu/zerotrace/internal/safety"
)

// Domains returns the residual scanners in registration order. The order
// decides which source tag survives when two scanners find the same target.
func Domains(p platform.Platform, gate *safety.Gate, protectedPublishers []string) []Scanner {
	f := p.Folders()
	if protectedPublishers == nil {
		protectedPublishers = DefaultProtectedPublishers
	}
	return []Scanner{
		NewInstallLocationScanner(gate),
		NewStandardFolderScanner(f.ProgramFiles, f.ProgramFilesX86, f.ProgramData),
		NewStartMenuScanner(StartMenuPrograms(f.ProgramData), StartMenuPrograms(f.AppData)),
		NewAppDataFolderScanner(protectedPublishers, f.LocalAppData, f.AppData),
		NewRegistryScanner(p),
		NewServiceScanner(p),
		NewTaskScanner(p),
		NewFirewallScanner(p),
	}
}
