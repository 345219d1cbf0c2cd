package catalog

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/zhengda-lu/zerotrace/internal/platform"
	"github.com/zhengda-lu/zerotrace/internal/utils"
)

const steamKey = `SOFTWARE\Valve\Steam`

var libraryPathRe = regexp.MustCompile(`"path"\s+"([^"]+)"`)

// ACFValue returns the value of a top-level "key" "value" pair in a Steam
// app manifest, or "" when the key is absent.
func ACFValue(text, key string) string {
	re := regexp.MustCompile(`"` + regexp.QuoteMeta(key) + `"\s+"([^"]*)"`)
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// LibraryPaths extracts the additional library roots from libraryfolders.vdf.
// Escaped backslashes are unescaped.
func LibraryPaths(vdf string) []string {
	var paths []string
	for _, m := range libraryPathRe.FindAllStringSubmatch(vdf, -1) {
		p := strings.TrimSpace(strings.ReplaceAll(m[1], `\\`, `\`))
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// steamApps lists games from the main Steam install and every extra library.
// Unreadable or incomplete manifests are skipped.
func steamApps(reg platform.Registry) []App {
	root, err := reg.StringValue(platform.CurrentUser, steamKey, "SteamPath")
	if err != nil || strings.TrimSpace(root) == "" {
		return nil
	}
	return steamAppsFrom(filepath.FromSlash(strings.TrimSpace(root)))
}

func steamAppsFrom(steamRoot string) []App {
	steamapps := filepath.Join(steamRoot, "steamapps")
	if !utils.DirExists(steamapps) {
		return nil
	}

	apps := manifestApps(steamapps)

	vdf, err := os.ReadFile(filepath.Join(steamapps, "libraryfolders.vdf"))
	if err != nil {
		return apps
	}
	for _, lib := range LibraryPaths(string(vdf)) {
		libApps := filepath.Join(filepath.FromSlash(lib), "steamapps")
		if !utils.DirExists(filepath.Join(libApps, "common")) {
			continue
		}
		apps = append(apps, manifestApps(libApps)...)
	}
	return apps
}

func manifestApps(steamapps string) []App {
	manifests, err := filepath.Glob(filepath.Join(steamapps, "appmanifest_*.acf"))
	if err != nil {
		return nil
	}
	common := filepath.Join(steamapps, "common")

	var apps []App
	for _, m := range manifests {
		data, err := os.ReadFile(m)
		if err != nil {
			continue
		}
		text := string(data)
		name := ACFValue(text, "name")
		dir := ACFValue(text, "installdir")
		if name == "" || dir == "" {
			continue
		}
		loc := filepath.Join(common, dir)
		if !utils.DirExists(loc) {
			continue
		}
		apps = append(apps, App{
			DisplayName:     name,
			Publisher:       "Steam",
			InstallLocation: loc,
			Source:          SourceSteam,
		})
	}
	return apps
}
