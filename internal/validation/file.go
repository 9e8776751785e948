package validation

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

var ErrInvalidFile = errors.New("invalid file")

// FileConstraints defines validation rules for file uploads
type FileConstraints struct {
	AllowedMimeTypes  map[string]bool
	AllowedExtensions map[string]bool
	MaxSize           int64
}

// AudioConstraints accepts the formats net/http can sniff from magic bytes.
var AudioConstraints = FileConstraints{
	AllowedMimeTypes: map[string]bool{
		"audio/mpeg":      true,
		"audio/wave":      true,
		"audio/aiff":      true,
		"application/ogg": true,
	},
	AllowedExtensions: map[string]bool{
		".mp3":  true,
		".wav":  true,
		".aif":  true,
		".aiff": true,
		".ogg":  true,
	},
	MaxSize: 20 << 20, // 20MB
}

// WithMaxSize returns a copy of c with a different size limit.
func (c FileConstraints) WithMaxSize(maxSize int64) FileConstraints {
	c.MaxSize = maxSize
	return c
}

// ValidateFile validates an upload against one or more constraint sets and
// returns the detected MIME type. The file must match at least one set.
func ValidateFile(header *multipart.FileHeader, constraints ...FileConstraints) (string, error) {
	if header == nil {
		return "", fmt.Errorf("%w: file is required", ErrInvalidFile)
	}
	if len(constraints) == 0 {
		return "", fmt.Errorf("no file constraints provided")
	}

	var lastErr error
	for _, constraint := range constraints {
		mimeType, err := validateAgainstConstraint(header, constraint)
		if err == nil {
			return mimeType, nil
		}
		lastErr = err
	}

	return "", lastErr
}

func validateAgainstConstraint(header *multipart.FileHeader, constraints FileConstraints) (string, error) {
	if header.Size == 0 {
		return "", fmt.Errorf("%w: file is empty", ErrInvalidFile)
	}

	// Size first, before reading content
	if header.Size > constraints.MaxSize {
		maxMB := constraints.MaxSize / (1 << 20)
		return "", fmt.Errorf("%w: maximum size is %d MB", ErrInvalidFile, maxMB)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !constraints.AllowedExtensions[ext] {
		return "", fmt.Errorf("%w: extension %q not allowed", ErrInvalidFile, ext)
	}

	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// http.DetectContentType looks at no more than 512 bytes
	buffer := make([]byte, 512)
	n, err := io.ReadFull(file, buffer)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	// Magic numbers cannot be faked by changing the Content-Type header
	detectedType := http.DetectContentType(buffer[:n])
	if !constraints.AllowedMimeTypes[detectedType] {
		return "", fmt.Errorf("%w: type %s not allowed", ErrInvalidFile, detectedType)
	}

	return detectedType, nil
}
