package codec

import "fmt"

const (
	kb = 1024
	mb = kb * 1024
	gb = mb * 1024
)

// SizeString formats a byte count as "12 B", "1.50 KB", "3.00 MB" or "1.25 GB".
func SizeString(size int64) string {
	switch {
	case size < kb:
		return fmt.Sprintf("%d B", size)
	case size < mb:
		return fmt.Sprintf("%.2f KB", float64(size)/kb)
	case size < gb:
		return fmt.Sprintf("%.2f MB", float64(size)/mb)
	default:
		return fmt.Sprintf("%.2f GB", float64(size)/gb)
	}
}
