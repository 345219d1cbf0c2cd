package utils

import "github.com/dustin/go-humanize"

// FormatSize renders a byte count with binary units, e.g. "1.5 MiB".
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
