package metascrub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

const (
	maxZipEntries = 10000
	maxZipSize    = 4 << 30
)

// docProps entries carry author, company, revision history and a thumbnail.
// Office files open fine without them.
var docPropsEntries = map[string]bool{
	"docProps/core.xml":       true,
	"docProps/app.xml":        true,
	"docProps/custom.xml":     true,
	"docProps/thumbnail.jpeg": true,
}

var officeCoreTags = map[string]string{
	"dc:creator":        "Author",
	"cp:lastModifiedBy": "LastModifiedBy",
	"dcterms:created":   "Created",
	"dcterms:modified":  "Modified",
	"dc:title":          "Title",
	"dc:subject":        "Subject",
	"cp:keywords":       "Keywords",
}

func openArchive(data []byte) (*zip.Reader, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid archive: %w", err)
	}
	if len(r.File) > maxZipEntries {
		return nil, fmt.Errorf("archive contains too many entries: %d", len(r.File))
	}
	var total uint64
	for _, f := range r.File {
		total += f.UncompressedSize64
		if total > maxZipSize {
			return nil, fmt.Errorf("archive uncompressed size exceeds limit")
		}
	}
	return r, nil
}

func analyzeOffice(path string, data []byte) (*Report, error) {
	r, err := openArchive(data)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, f := range r.File {
		if f.Name != "docProps/core.xml" && f.Name != "docProps/app.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		content, err := io.ReadAll(io.LimitReader(rc, 1<<20))
		rc.Close()
		if err != nil {
			continue
		}

		for tag, label := range officeCoreTags {
			if value := extractXMLValue(content, tag); value != "" {
				report.RawTags = append(report.RawTags, Entry{Key: label, Value: value})
				switch label {
				case "Author", "LastModifiedBy":
					report.HasAuthor = true
				case "Created":
					report.CreationDate = value
				}
			}
		}
		if value := extractXMLValue(content, "Application"); value != "" {
			report.RawTags = append(report.RawTags, Entry{Key: "Application", Value: value})
			report.SoftwareInfo = value
		}
	}
	return report, nil
}

// extractXMLValue pulls the text content of one element. A proper XML parse
// is overkill for the two small property files this looks at.
func extractXMLValue(content []byte, tag string) string {
	re := regexp.MustCompile(`<` + regexp.QuoteMeta(tag) + `[^>]*>([^<]*)</` + regexp.QuoteMeta(tag) + `>`)
	m := re.FindSubmatch(content)
	if m == nil {
		return ""
	}
	value := strings.TrimSpace(string(m[1]))
	if len(value) > 120 {
		value = value[:120] + "..."
	}
	return value
}

func scrubOffice(data []byte, _ Options) ([]byte, error) {
	return rewriteArchive(data, true)
}

func analyzeZip(path string, data []byte) (*Report, error) {
	r, err := openArchive(data)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RawTags: []Entry{{Key: "Info", Value: "ZIP archives may contain file timestamps and comments"}},
	}
	report.RawTags = append(report.RawTags, Entry{Key: "Entries", Value: fmt.Sprintf("%d", len(r.File))})
	if r.Comment != "" {
		report.RawTags = append(report.RawTags, Entry{Key: "Comment", Value: r.Comment})
	}
	return report, nil
}

func scrubZip(data []byte, _ Options) ([]byte, error) {
	return rewriteArchive(data, false)
}

// rewriteArchive copies every entry raw (no recompression), dropping the
// archive comment, per-entry comments and timestamps along the way. With
// dropDocProps set, office property entries are omitted entirely.
func rewriteArchive(data []byte, dropDocProps bool) ([]byte, error) {
	r, err := openArchive(data)
	if err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)

	for _, f := range r.File {
		if dropDocProps && docPropsEntries[f.Name] {
			continue
		}

		hdr := f.FileHeader
		hdr.Comment = ""
		hdr.Modified = time.Time{}
		hdr.ModifiedDate = 0
		hdr.ModifiedTime = 0
		hdr.Extra = nil // extra fields carry high-resolution timestamps and uid/gid

		fw, err := w.CreateRaw(&hdr)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("failed to write archive entry %s: %w", f.Name, err)
		}
		rc, err := f.OpenRaw()
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("failed to read archive entry %s: %w", f.Name, err)
		}
		if _, err := io.Copy(fw, rc); err != nil {
			w.Close()
			return nil, fmt.Errorf("failed to copy archive entry %s: %w", f.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
