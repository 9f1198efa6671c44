package crawler

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// deniedExtensions are paths that never contain crawlable HTML.
var deniedExtensions = map[string]bool{
	// documents
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true, ".odt": true, ".rtf": true, ".csv": true,
	// images
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".svg": true, ".ico": true, ".bmp": true, ".tif": true, ".tiff": true, ".avif": true,
	// archives and binaries
	".zip": true, ".rar": true, ".7z": true, ".tar": true, ".gz": true,
	".bz2": true, ".dmg": true, ".exe": true, ".msi": true, ".apk": true, ".iso": true,
	// media
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wmv": true,
	".webm": true, ".ogg": true, ".wav": true, ".flac": true, ".m4a": true,
	// assets
	".css": true, ".js": true, ".json": true, ".xml": true, ".rss": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".map": true,
}

// hasDeniedExtension reports whether the URL path ends in a non-HTML extension.
func hasDeniedExtension(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	return ext != "" && deniedExtensions[ext]
}

// shouldCrawl checks a same-site URL against the extension denylist and the
// configured ignore/follow patterns.
//
// Logic:
//  1. Denylisted extensions are skipped
//  2. If the path matches any ignore pattern, it is skipped
//  3. If follow patterns are set, the path must match at least one
func (s *Spider) shouldCrawl(targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	p := u.Path
	if p == "" {
		p = "/"
	}

	if hasDeniedExtension(p) {
		return false
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, p) {
			return false
		}
	}

	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, p) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing /* to match a whole subtree
//   - a leading *. to match an extension anywhere
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users/edit"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, p string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(p, prefix+"/") || p == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(p, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, p)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(p))
		if err == nil && matched {
			return true
		}
	}

	return false
}
