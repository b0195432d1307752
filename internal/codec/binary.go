package codec

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Extensions of formats that do not survive a text decode.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".ico": true, ".tiff": true, ".webp": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true, ".odt": true, ".ods": true, ".odp": true,
	".zip": true, ".rar": true, ".7z": true, ".tar": true, ".gz": true,
	".bz2": true, ".xz": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mkv": true, ".mov": true,
	".wav": true, ".flac": true, ".aac": true, ".ogg": true, ".wma": true,
	".ttf": true, ".otf": true, ".woff": true, ".woff2": true, ".eot": true,
}

// LooksBinary guesses from the name and the first 8KB whether content is
// binary. Text mode encryption of such files loses data.
func LooksBinary(name string, content []byte) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if binaryExtensions[ext] {
		return true
	}

	if len(content) == 0 {
		return false
	}

	checkLen := len(content)
	if checkLen > 8192 {
		checkLen = 8192
	}

	if bytes.IndexByte(content[:checkLen], 0) != -1 {
		return true
	}

	nonPrintable := 0
	for i := 0; i < checkLen; i++ {
		b := content[i]
		if b < 32 && b != '\t' && b != '\n' && b != '\r' {
			nonPrintable++
		}
	}

	// More than 30% control characters
	return float64(nonPrintable)/float64(checkLen) > 0.3
}
