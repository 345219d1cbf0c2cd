package platform

import (
	"encoding/csv"
	"strings"
)

// JoinTaskPath joins a task folder and a task name into \Folder\Name.
func JoinTaskPath(folder, name string) string {
	folder = strings.Trim(folder, `\`)
	name = strings.Trim(name, `\`)
	if folder == "" {
		return `\` + name
	}
	return `\` + folder + `\` + name
}

// SplitTaskPath splits \Folder\Name into the folder ("\Folder\") and the name.
// A bare name lives in the root folder.
func SplitTaskPath(full string) (folder, name string) {
	full = strings.TrimSpace(full)
	if i := strings.LastIndex(full, `\`); i >= 0 {
		folder = full[:i+1]
		name = full[i+1:]
	} else {
		name = full
	}
	if !strings.HasPrefix(folder, `\`) {
		folder = `\` + folder
	}
	return folder, name
}

// ParseTaskList parses the CSV listing printed by "schtasks /query /fo csv".
// A header row naming a TaskName column (and optionally TaskPath) selects the
// columns; the tool repeats the header for every folder. Without a header the
// first column is taken as the full task path, or as the bare name when the
// second column holds the folder. Lines that do not parse are skipped.
func ParseTaskList(output string) []TaskInfo {
	nameCol, pathCol := -1, -1
	var tasks []TaskInfo

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		upper := strings.ToUpper(strings.TrimSpace(line))
		if strings.HasPrefix(upper, "INFO:") || strings.HasPrefix(upper, "ERROR:") {
			continue
		}

		r := csv.NewReader(strings.NewReader(line))
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		r.TrimLeadingSpace = true
		rec, err := r.Read()
		if err != nil || len(rec) == 0 {
			continue
		}

		if header(rec, &nameCol, &pathCol) {
			continue
		}

		var t TaskInfo
		switch {
		case nameCol >= 0 && nameCol < len(rec) && pathCol >= 0 && pathCol < len(rec):
			t = TaskInfo{Name: strings.TrimSpace(rec[nameCol]), Path: normalizeFolder(rec[pathCol])}
		case nameCol >= 0 && nameCol < len(rec):
			t.Path, t.Name = SplitTaskPath(rec[nameCol])
		case nameCol < 0 && len(rec) >= 2 && strings.HasPrefix(strings.TrimSpace(rec[1]), `\`) && !strings.HasPrefix(strings.TrimSpace(rec[0]), `\`):
			t = TaskInfo{Name: strings.TrimSpace(rec[0]), Path: normalizeFolder(rec[1])}
		case nameCol < 0:
			t.Path, t.Name = SplitTaskPath(rec[0])
		default:
			continue
		}

		if t.Name == "" {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks
}

func header(rec []string, nameCol, pathCol *int) bool {
	n, p := -1, -1
	for i, f := range rec {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "taskname":
			n = i
		case "taskpath":
			p = i
		}
	}
	if n < 0 {
		return false
	}
	*nameCol, *pathCol = n, p
	return true
}

func normalizeFolder(p string) string {
	p = strings.Trim(strings.TrimSpace(p), `\`)
	if p == "" {
		return `\`
	}
	return `\` + p + `\`
}
