package core

import (
	"net/url"
	"path/filepath"
	"strings"
)

// EscapeFilename maps name onto a single safe path element. The mapping is
// reversible (see UnescapeFilename), so distinct names never share a directory
// on a case-sensitive file system. Letters, digits, '-', '_' and inner dots are
// kept; every other byte, including '%', becomes %XX.
func EscapeFilename(name string) string {
	if name == "" {
		return "%"
	}

	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteByte(c)
		case c == '.' && i > 0 && i < len(name)-1:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		}
	}
	return b.String()
}

// UnescapeFilename reverses EscapeFilename.
func UnescapeFilename(escaped string) (string, error) {
	if escaped == "%" {
		return "", nil
	}
	return url.PathUnescape(escaped)
}

// XMLFileDir returns the directory the XML file store uses for app under logPath.
func XMLFileDir(logPath, app string) string {
	if app == "" {
		return logPath
	}
	return filepath.Join(logPath, EscapeFilename(app))
}
