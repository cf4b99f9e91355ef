package api

import (
	"mime"
	"path"
	"strings"
)

const defaultDownloadName = "download"

// resolveFilename picks the saved name for a download: the Content-Disposition filename,
// then fallback, then "download". Directory components are always dropped.
func resolveFilename(disposition, fallback string) string {
	if name := dispositionFilename(disposition); name != "" {
		return name
	}
	if name := baseName(fallback); name != "" {
		return name
	}
	return defaultDownloadName
}

func dispositionFilename(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(header); err == nil {
		if name := baseName(params["filename"]); name != "" {
			return name
		}
	}

	// Lenient path for headers mime rejects, e.g. unquoted names with spaces.
	idx := strings.Index(strings.ToLower(header), "filename=")
	if idx < 0 {
		return ""
	}
	raw := header[idx+len("filename="):]
	if end := strings.IndexByte(raw, ';'); end >= 0 {
		raw = raw[:end]
	}
	raw = strings.Trim(strings.TrimSpace(raw), `"'`)
	return baseName(raw)
}

func baseName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" {
		return ""
	}
	name = path.Base(name)
	switch name {
	case ".", "..", "/":
		return ""
	}
	return name
}
