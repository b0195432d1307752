package testutil

import (
	"github.com/TheMichaelB/sealfile/internal/models"
)

// SamplePassword scores as strong and survives both password encodings.
const SamplePassword = "Abc123!@"

// SampleFiles provides text file content for fixtures.
var SampleFiles = map[string]string{
	"notes.txt": "hello",
	"welcome.md": `# Welcome

This file is encrypted with a password.

## Steps
- Pick a file
- Type a password twice
- Save the .enc file
`,
	"unicode.txt": "naïve café, 東京, emoji 🔐\n",
	"empty.txt":   "",
}

// SampleBinaryFiles provides binary content.
var SampleBinaryFiles = map[string][]byte{
	"pixel.png": {
		0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // PNG header
		0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, // IHDR chunk
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, // 1x1 pixel
		0x08, 0x02, 0x00, 0x00, 0x00, 0x90, 0x77, 0x53,
		0xDE, 0x00, 0x00, 0x00, 0x0C, 0x49, 0x44, 0x41,
		0x54, 0x08, 0x57, 0x63, 0xF8, 0x0F, 0x00, 0x00,
		0x01, 0x00, 0x01, 0x5C, 0x6A, 0xE2, 0x8F, 0x00,
		0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
		0x42, 0x60, 0x82,
	},
}

// SampleFile returns an in-memory source file from SampleFiles or
// SampleBinaryFiles. It panics on unknown names.
func SampleFile(name string) *models.SourceFile {
	if content, ok := SampleFiles[name]; ok {
		return models.NewSourceFile(name, []byte(content))
	}
	if content, ok := SampleBinaryFiles[name]; ok {
		return models.NewSourceFile(name, content)
	}
	panic("unknown sample file: " + name)
}
