package tus

import (
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const octetStream = "application/octet-stream"

// detectContentType prefers the extension table and falls back to sniffing
// the first 512 bytes.
func detectContentType(path string) string {
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
		return byExt
	}

	file, err := os.Open(path)
	if err != nil {
		return octetStream
	}
	defer file.Close()

	buffer := make([]byte, 512)
	n, err := io.ReadFull(file, buffer)
	if n == 0 && err != nil {
		return octetStream
	}

	return http.DetectContentType(buffer[:n])
}
