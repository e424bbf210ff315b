package output

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwygoda/transcriber/internal/domain"
)

// Separator ends the artifact header.
var Separator = strings.Repeat("-", 50)

var ErrMalformedArtifact = errors.New("artifact header is malformed")

// EnsureDirectory returns a writable output directory, trying fallback once
// if primary cannot be created or written.
func EnsureDirectory(primary, fallback string) (string, error) {
	err := prepare(primary)
	if err == nil {
		log.Printf("using output directory %s", primary)
		return primary, nil
	}
	log.Printf("cannot use output directory %s: %v", primary, err)

	if fallback == "" || fallback == primary {
		return "", domain.Fatal(domain.FatalOutputDir, err)
	}
	if ferr := prepare(fallback); ferr != nil {
		return "", domain.Fatal(domain.FatalOutputDir, fmt.Errorf("%s: %v; fallback %s: %w", primary, err, fallback, ferr))
	}
	log.Printf("using fallback output directory %s", fallback)
	return fallback, nil
}

// prepare creates dir and proves it is writable.
func prepare(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".write-probe-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

// Writer stores one text file per entry, named after the entry id.
type Writer struct {
	dir string
}

// New creates a writer rooted at dir. Call EnsureDirectory first.
func New(dir string) *Writer {
	return &Writer{dir: dir}
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Path returns the artifact path for an entry.
func (w *Writer) Path(e domain.Entry) string {
	return filepath.Join(w.dir, FileName(e.ID))
}

// Write replaces the entry's artifact atomically. Writing the same result
// twice leaves identical content.
func (w *Writer) Write(e domain.Entry, res domain.TranscriptResult) error {
	lang := res.Language
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Video ID: %s\n", oneLine(e.ID))
	fmt.Fprintf(&buf, "URL: %s\n", oneLine(e.URL))
	fmt.Fprintf(&buf, "Description: %s\n", oneLine(e.Description))
	fmt.Fprintf(&buf, "Language: %s\n", oneLine(lang))
	buf.WriteString(Separator + "\n\n")
	buf.WriteString(res.Text)

	dst := w.Path(e)
	tmp, err := os.CreateTemp(w.dir, ".tmp-"+FileName(e.ID)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", dst, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", dst, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("rename to %s: %w", dst, err)
	}
	return nil
}

// FileName maps an id to a filesystem-safe name. The mapping depends only
// on the id and is injective: when sanitising changes the id, a hash of the
// raw id is appended after a '~', which never survives sanitising.
func FileName(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == "" || strings.Trim(name, ".") == "" {
		name = strings.Repeat("_", max(len(name), 1))
	}
	if name != id {
		sum := sha256.Sum256([]byte(id))
		name += "~" + hex.EncodeToString(sum[:6])
	}
	return name + ".txt"
}

func oneLine(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}

// Header is the metadata block at the top of an artifact.
type Header struct {
	VideoID     string
	URL         string
	Description string
	Language    string
}

// ReadArtifact parses a file produced by Write.
func ReadArtifact(path string) (Header, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, "", err
	}
	return ParseArtifact(data)
}

// ParseArtifact splits an artifact into header and body.
func ParseArtifact(data []byte) (Header, string, error) {
	marker := "\n" + Separator + "\n\n"
	idx := bytes.Index(data, []byte(marker))
	if idx < 0 {
		return Header{}, "", ErrMalformedArtifact
	}

	var h Header
	fields := map[string]*string{
		"Video ID":    &h.VideoID,
		"URL":         &h.URL,
		"Description": &h.Description,
		"Language":    &h.Language,
	}
	sc := bufio.NewScanner(bytes.NewReader(data[:idx]))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ": ")
		dst, known := fields[key]
		if !ok || !known {
			return Header{}, "", fmt.Errorf("%w: %q", ErrMalformedArtifact, sc.Text())
		}
		*dst = value
	}
	return h, string(data[idx+len(marker):]), nil
}
