// Package codec reads source files as text and lays out encrypted artifacts.
package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"

	"github.com/TheMichaelB/sealfile/internal/config"
	"github.com/TheMichaelB/sealfile/internal/models"
	"github.com/TheMichaelB/sealfile/internal/storage"
)

// maxExpansion is the most UTF-8 bytes a single input byte decodes to.
const maxExpansion = 3

// Codec converts between file bytes, text and output artifacts.
type Codec struct {
	name     string
	encoding encoding.Encoding
	maxSize  int64
	format   string
}

// Option configures a Codec.
type Option func(*Codec)

// WithMaxSize limits the size of files read.
func WithMaxSize(n int64) Option {
	return func(c *Codec) {
		c.maxSize = n
	}
}

// WithCiphertextFormat selects how ciphertext is represented in the output.
func WithCiphertextFormat(format string) Option {
	return func(c *Codec) {
		c.format = format
	}
}

// New creates a codec for a WHATWG encoding label such as "utf-8" or
// "windows-1252".
func New(encodingName string, opts ...Option) (*Codec, error) {
	enc, err := htmlindex.Get(encodingName)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown encoding %q", models.ErrInvalidConfig, encodingName)
	}

	name, err := htmlindex.Name(enc)
	if err != nil {
		name = encodingName
	}

	// A UTF-8 decoder drops a leading byte order mark.
	if enc == unicode.UTF8 {
		enc = unicode.UTF8BOM
	}

	c := &Codec{
		name:     name,
		encoding: enc,
		maxSize:  100 * 1024 * 1024,
		format:   config.CiphertextText,
	}
	for _, opt := range opts {
		opt(c)
	}

	switch c.format {
	case config.CiphertextText, config.CiphertextRaw:
	default:
		return nil, fmt.Errorf("%w: unknown ciphertext format %q", models.ErrInvalidConfig, c.format)
	}

	return c, nil
}

// NewFromConfig creates a codec from application configuration.
func NewFromConfig(cfg *config.Config) (*Codec, error) {
	return New(cfg.Encoding,
		WithMaxSize(cfg.Output.MaxFileSize),
		WithCiphertextFormat(cfg.Output.CiphertextFormat),
	)
}

// Encoding returns the canonical name of the text encoding.
func (c *Codec) Encoding() string {
	return c.name
}

// CiphertextFormat returns "text" or "raw".
func (c *Codec) CiphertextFormat() string {
	return c.format
}

// ReadAsText reads the whole file and decodes it. Bytes that are invalid in
// the encoding become U+FFFD. Cancelling ctx aborts the read.
func (c *Codec) ReadAsText(ctx context.Context, file *models.SourceFile) (string, error) {
	data, err := c.ReadBytes(ctx, file)
	if err != nil {
		return "", err
	}

	text, err := c.decode(data)
	if err != nil {
		return "", fmt.Errorf("%w: decode %s: %w", models.ErrFileReadFailed, file.Name, err)
	}

	return text, nil
}

// ReadBytes reads the raw file content.
func (c *Codec) ReadBytes(ctx context.Context, file *models.SourceFile) ([]byte, error) {
	if file == nil {
		return nil, fmt.Errorf("%w: %w", models.ErrFileReadFailed, models.ErrNoFile)
	}

	if file.Size > c.maxSize {
		return nil, fmt.Errorf("%w: %s is %s (max: %s)", models.ErrFileReadFailed,
			file.Name, SizeString(file.Size), SizeString(c.maxSize))
	}

	if err := ctx.Err(); err != nil {
		return nil, readError(file.Name, err)
	}

	rc, err := file.Open()
	if err != nil {
		return nil, readError(file.Name, err)
	}
	defer rc.Close()

	limited := &io.LimitedReader{
		R: &contextReader{ctx: ctx, r: rc},
		N: c.maxSize + 1, // +1 to detect oversized
	}

	var buf bytes.Buffer
	if file.Size > 0 {
		buf.Grow(int(file.Size))
	}

	if _, err := buf.ReadFrom(limited); err != nil {
		return nil, readError(file.Name, err)
	}

	if limited.N <= 0 {
		return nil, fmt.Errorf("%w: %s exceeds %s", models.ErrFileReadFailed, file.Name, SizeString(c.maxSize))
	}

	return buf.Bytes(), nil
}

// EncodeText returns the UTF-8 bytes of text.
func (c *Codec) EncodeText(text string) []byte {
	return []byte(text)
}

// CiphertextRepresentation returns the bytes stored for the ciphertext. In
// text mode the ciphertext is decoded as text and stored as UTF-8, which is
// lossy; raw mode stores it unchanged.
func (c *Codec) CiphertextRepresentation(ciphertext []byte) []byte {
	if c.format == config.CiphertextRaw {
		return ciphertext
	}

	text, err := c.decode(ciphertext)
	if err != nil {
		// Decoders for WHATWG encodings replace rather than fail.
		return bytes.ToValidUTF8(ciphertext, []byte("\uFFFD"))
	}
	return c.EncodeText(text)
}

// SerializeOutput lays out representation || salt || nonce with no framing.
func (c *Codec) SerializeOutput(ciphertext, salt, nonce []byte) []byte {
	repr := c.CiphertextRepresentation(ciphertext)

	out := make([]byte, 0, len(repr)+len(salt)+len(nonce))
	out = append(out, repr...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return out
}

// MaxOutputSize bounds the artifact produced from a file that ReadBytes
// accepts. Decoding and re-encoding as UTF-8 can triple the text, and the
// text representation can triple the ciphertext again.
func (c *Codec) MaxOutputSize(tagSize, saltSize, nonceSize int) int64 {
	ciphertext := c.maxSize*maxExpansion + int64(tagSize)
	if c.format == config.CiphertextText {
		ciphertext *= maxExpansion
	}
	return ciphertext + int64(saltSize) + int64(nonceSize)
}

// OutputName returns "<name>.<ext>".
func OutputName(name, ext string) string {
	return name + "." + ext
}

// WriteOutput hands the artifact to sink.
func WriteOutput(ctx context.Context, sink storage.OutputSink, name string, data []byte) (string, error) {
	location, err := sink.Write(ctx, name, data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", models.ErrOutputWriteFailed, name, err)
	}
	return location, nil
}

func (c *Codec) decode(data []byte) (string, error) {
	out, err := c.encoding.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func readError(name string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w: %w", models.ErrFileReadFailed, name, models.ErrReadAborted, err)
	}
	return fmt.Errorf("%w: %s: %w", models.ErrFileReadFailed, name, err)
}

// contextReader stops reading once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
