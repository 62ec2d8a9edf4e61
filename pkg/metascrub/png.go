package metascrub

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}

// pngMetadataChunks are dropped by a scrub. Text and EXIF chunks carry the
// obvious payloads; the remainder (timestamps, color profiles, physical
// dimensions) are ancillary and safe to remove.
var pngMetadataChunks = map[string]bool{
	"eXIf": true, "tEXt": true, "zTXt": true, "iTXt": true,
	"tIME": true, "pHYs": true, "iCCP": true, "cHRM": true,
	"sRGB": true, "gAMA": true, "bKGD": true, "hIST": true,
}

type pngChunk struct {
	kind string
	raw  []byte // full chunk: length, type, data, crc
	data []byte
}

func parsePNG(data []byte) ([]pngChunk, error) {
	if len(data) < len(pngSignature) || !bytes.Equal(data[:8], pngSignature) {
		return nil, errors.New("invalid PNG: missing signature")
	}

	var chunks []pngChunk
	i := 8
	for i < len(data) {
		if i+8 > len(data) {
			return nil, errors.New("invalid PNG: truncated chunk header")
		}
		length := int(binary.BigEndian.Uint32(data[i : i+4]))
		end := i + 8 + length + 4
		if length < 0 || end > len(data) {
			return nil, errors.New("invalid PNG: bad chunk length")
		}
		chunks = append(chunks, pngChunk{
			kind: string(data[i+4 : i+8]),
			raw:  data[i:end],
			data: data[i+8 : i+8+length],
		})
		i = end
	}
	return chunks, nil
}

func analyzePNG(path string, data []byte) (*Report, error) {
	chunks, err := parsePNG(data)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, chunk := range chunks {
		switch chunk.kind {
		case "tEXt", "iTXt", "zTXt":
			key, value := splitPNGText(chunk.data)
			report.RawTags = append(report.RawTags, Entry{Key: key, Value: value})
			lower := strings.ToLower(key)
			if strings.Contains(lower, "author") || strings.Contains(lower, "copyright") {
				report.HasAuthor = true
			}
			if strings.Contains(lower, "software") && report.SoftwareInfo == "" {
				report.SoftwareInfo = value
			}
		case "tIME":
			report.RawTags = append(report.RawTags, Entry{Key: "tIME", Value: "embedded modification time"})
			if report.CreationDate == "" && len(chunk.data) >= 7 {
				report.CreationDate = "present (tIME chunk)"
			}
		case "eXIf":
			report.RawTags = append(report.RawTags, Entry{Key: "eXIf", Value: "embedded EXIF block"})
		}
	}
	return report, nil
}

// splitPNGText extracts the keyword of a text chunk. Compressed payloads
// (zTXt, iTXt) are reported by keyword only.
func splitPNGText(data []byte) (string, string) {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		key := string(data[:i])
		value := string(data[i+1:])
		if !isPrintable(value) || len(value) > 120 {
			value = "(binary or compressed)"
		}
		return key, value
	}
	return "text", "(malformed chunk)"
}

func isPrintable(s string) bool {
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\t' {
			return false
		}
	}
	return true
}

// scrubPNG rewrites the chunk stream without metadata chunks.
func scrubPNG(data []byte, _ Options) ([]byte, error) {
	chunks, err := parsePNG(data)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(data))
	out = append(out, pngSignature...)
	for _, chunk := range chunks {
		if pngMetadataChunks[chunk.kind] {
			continue
		}
		out = append(out, chunk.raw...)
	}
	return out, nil
}
