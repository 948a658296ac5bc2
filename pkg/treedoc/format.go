package treedoc

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/vango-dev/vdiff/internal/errors"
)

// Format is a tree document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// ParseFormat converts a format name ("yaml", "yml", "json", "html", "htm")
// to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	case "html", "htm":
		return FormatHTML, nil
	default:
		return "", unsupported(fmt.Sprintf("unknown format %q", name))
	}
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", unsupported(fmt.Sprintf("%s has no file extension", path))
	}
	return ParseFormat(ext)
}

// FormatFromContentType picks the format from an HTTP Content-Type. An
// empty content type means YAML.
func FormatFromContentType(contentType string) (Format, error) {
	if contentType == "" {
		return FormatYAML, nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", unsupported(fmt.Sprintf("bad content type %q", contentType))
	}
	switch mediaType {
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return FormatYAML, nil
	case "application/json":
		return FormatJSON, nil
	case "text/html":
		return FormatHTML, nil
	default:
		return "", unsupported(fmt.Sprintf("unsupported content type %q", mediaType))
	}
}

// ContentType returns the media type used to serve f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "application/yaml"
	}
}

func unsupported(detail string) error {
	return errors.New("E011").WithDetail(detail)
}
