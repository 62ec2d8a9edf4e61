// Package metascrub inspects and removes identifying metadata from common
// document and image formats: EXIF blocks, PNG text chunks, PDF info
// dictionaries, office document properties and archive timestamps.
// Analyze never modifies anything; Clean always writes a new file and leaves
// the source untouched.
package metascrub

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// maxFileSize caps what we are willing to load for scrubbing.
const maxFileSize = 200 << 20

// Entry is one raw metadata tag.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Report is the result of analyzing a single file.
type Report struct {
	HasGPS       bool    `json:"hasGps"`
	HasAuthor    bool    `json:"hasAuthor"`
	CameraInfo   string  `json:"cameraInfo,omitempty"`
	SoftwareInfo string  `json:"softwareInfo,omitempty"`
	CreationDate string  `json:"creationDate,omitempty"`
	GPSInfo      string  `json:"gpsInfo,omitempty"`
	FileType     string  `json:"fileType"`
	FileSize     int64   `json:"fileSize"`
	RawTags      []Entry `json:"rawTags"`
}

// Options selects which categories of metadata the user wants removed.
// With no category selected Clean copies the file unmodified.
type Options struct {
	GPS    bool `json:"gps"`
	Author bool `json:"author"`
	Date   bool `json:"date"`
}

func (o Options) any() bool {
	return o.GPS || o.Author || o.Date
}

// Comparison diffs an original against its cleaned counterpart.
type Comparison struct {
	OriginalSize  int64    `json:"originalSize"`
	CleanedSize   int64    `json:"cleanedSize"`
	RemovedTags   []string `json:"removedTags"`
	SizeReduction int64    `json:"sizeReduction"`
}

// handler bundles the per-format analyze and scrub implementations. The
// dispatch table is keyed by lowercase extension and resolved once per call,
// so adding a format is one table entry.
type handler struct {
	fileType string
	analyze  func(path string, data []byte) (*Report, error)
	scrub    func(data []byte, opts Options) ([]byte, error)
}

// Scrubber dispatches to per-format handlers.
type Scrubber struct {
	log      *zerolog.Logger
	handlers map[string]handler
}

// NewScrubber creates a Scrubber with all built-in format handlers.
func NewScrubber(log *zerolog.Logger) *Scrubber {
	s := &Scrubber{log: log}
	s.handlers = map[string]handler{
		"jpg":  {fileType: "JPEG Image", analyze: analyzeJPEG, scrub: scrubJPEG},
		"jpeg": {fileType: "JPEG Image", analyze: analyzeJPEG, scrub: scrubJPEG},
		"png":  {fileType: "PNG Image", analyze: analyzePNG, scrub: scrubPNG},
		"pdf":  {fileType: "PDF Document", analyze: analyzePDF, scrub: scrubPDF},
		"docx": {fileType: "Word Document", analyze: analyzeOffice, scrub: scrubOffice},
		"xlsx": {fileType: "Excel Spreadsheet", analyze: analyzeOffice, scrub: scrubOffice},
		"pptx": {fileType: "PowerPoint Presentation", analyze: analyzeOffice, scrub: scrubOffice},
		"zip":  {fileType: "ZIP Archive", analyze: analyzeZip, scrub: scrubZip},
	}
	return s
}

// Supported reports whether the file extension has a handler.
func (s *Scrubber) Supported(path string) bool {
	_, ok := s.handlers[normalizeExt(path)]
	return ok
}

// Analyze reads the metadata of one file without modifying it.
func (s *Scrubber) Analyze(path string) (*Report, error) {
	h, data, err := s.load(path)
	if err != nil {
		return nil, err
	}
	report, err := h.analyze(path, data)
	if err != nil {
		return nil, err
	}
	report.FileType = h.fileType
	report.FileSize = int64(len(data))
	return report, nil
}

// Clean writes a scrubbed copy of path as "<stem>_clean.<ext>" in outputDir
// (or next to the source when outputDir is empty) and returns the new path.
// It refuses to overwrite an existing file.
func (s *Scrubber) Clean(path, outputDir string, opts Options) (string, error) {
	h, data, err := s.load(path)
	if err != nil {
		return "", err
	}

	cleaned := data
	if opts.any() {
		cleaned, err = h.scrub(data, opts)
		if err != nil {
			return "", err
		}
	}

	outPath := cleanOutputPath(path, outputDir)
	out, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("output already exists: %s", outPath)
		}
		return "", fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	if _, err := out.Write(cleaned); err != nil {
		out.Close()
		os.Remove(outPath)
		return "", fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("failed to close %s: %w", outPath, err)
	}

	s.log.Info().Str("source", path).Str("cleaned", outPath).Msg("metadata removed")
	return outPath, nil
}

// Compare reports which tags a cleaning pass removed.
func (s *Scrubber) Compare(original, cleaned string) (*Comparison, error) {
	before, err := s.Analyze(original)
	if err != nil {
		return nil, err
	}
	after, err := s.Analyze(cleaned)
	if err != nil {
		return nil, err
	}

	kept := make(map[string]bool, len(after.RawTags))
	for _, tag := range after.RawTags {
		kept[tag.Key] = true
	}
	var removed []string
	for _, tag := range before.RawTags {
		if !kept[tag.Key] {
			removed = append(removed, tag.Key)
		}
	}
	sort.Strings(removed)

	comparison := &Comparison{
		OriginalSize: before.FileSize,
		CleanedSize:  after.FileSize,
		RemovedTags:  removed,
	}
	if before.FileSize > after.FileSize {
		comparison.SizeReduction = before.FileSize - after.FileSize
	}
	return comparison, nil
}

// load validates the path, resolves its handler and reads the content.
func (s *Scrubber) load(path string) (handler, []byte, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return handler{}, nil, fmt.Errorf("file does not exist: %s", path)
		}
		return handler{}, nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return handler{}, nil, fmt.Errorf("refusing to process symlink: %s", path)
	}
	if !info.Mode().IsRegular() {
		return handler{}, nil, fmt.Errorf("not a regular file: %s", path)
	}
	if info.Size() > maxFileSize {
		return handler{}, nil, fmt.Errorf("file too large to process (>200 MiB): %s", path)
	}

	h, ok := s.handlers[normalizeExt(path)]
	if !ok {
		return handler{}, nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return handler{}, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return h, data, nil
}

func normalizeExt(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

func cleanOutputPath(path, outputDir string) string {
	dir := filepath.Dir(path)
	if outputDir != "" {
		dir = outputDir
	}
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, stem+"_clean"+ext)
}
