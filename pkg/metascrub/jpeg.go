package metascrub

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// tagCollector gathers every EXIF field into raw tags while spotting the
// interesting ones for the summary.
type tagCollector struct {
	report *Report
}

func (c *tagCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	value := strings.Trim(tag.String(), `"`)
	if len(value) > 120 {
		value = value[:120] + "..."
	}
	c.report.RawTags = append(c.report.RawTags, Entry{Key: string(name), Value: value})

	switch name {
	case exif.Make, exif.Model:
		if c.report.CameraInfo == "" {
			c.report.CameraInfo = value
		} else if !strings.Contains(c.report.CameraInfo, value) {
			c.report.CameraInfo += " " + value
		}
	case exif.Software:
		c.report.SoftwareInfo = value
		c.report.HasAuthor = true
	case exif.Artist, exif.Copyright:
		c.report.HasAuthor = true
	case exif.DateTimeOriginal, exif.DateTime:
		if c.report.CreationDate == "" {
			c.report.CreationDate = value
		}
	}
	return nil
}

func analyzeJPEG(path string, data []byte) (*Report, error) {
	report := &Report{}

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		// No EXIF block is a perfectly clean image, not an error.
		return report, nil
	}

	collector := &tagCollector{report: report}
	_ = x.Walk(collector)

	if lat, long, err := x.LatLong(); err == nil {
		report.HasGPS = true
		report.GPSInfo = fmt.Sprintf("%.6f, %.6f", lat, long)
	}
	return report, nil
}

// JPEG segment markers that survive a scrub: JFIF header, quantization and
// Huffman tables, restart interval, frame headers and the scan itself.
// Everything in the APP1-APP15 range plus comments is dropped.
func keepJPEGMarker(marker byte) bool {
	switch marker {
	case 0xE0, 0xDB, 0xC4, 0xDA, 0xDD:
		return true
	}
	if marker >= 0xC0 && marker <= 0xCF && marker != 0xC8 {
		return true
	}
	if marker >= 0xE1 && marker <= 0xEF {
		return false
	}
	return marker != 0xFE
}

// scrubJPEG rewrites the segment stream, dropping metadata segments. The
// entropy-coded image data after SOS is copied verbatim.
func scrubJPEG(data []byte, _ Options) ([]byte, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, errors.New("invalid JPEG: missing SOI marker")
	}

	out := make([]byte, 0, len(data))
	out = append(out, 0xFF, 0xD8)

	i := 2
	for i < len(data) {
		if data[i] != 0xFF || i+1 >= len(data) {
			return nil, errors.New("invalid JPEG: malformed segment stream")
		}
		marker := data[i+1]

		// Padding / standalone markers carry no length.
		if marker == 0xFF {
			i++
			continue
		}
		if marker == 0xD9 {
			out = append(out, 0xFF, 0xD9)
			break
		}
		if marker == 0xDA {
			// Start of scan: the rest is image data.
			out = append(out, data[i:]...)
			break
		}

		if i+4 > len(data) {
			return nil, errors.New("invalid JPEG: truncated segment")
		}
		segLen := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		if segLen < 2 || i+2+segLen > len(data) {
			return nil, errors.New("invalid JPEG: bad segment length")
		}

		if keepJPEGMarker(marker) {
			out = append(out, data[i:i+2+segLen]...)
		}
		i += 2 + segLen
	}
	return out, nil
}
