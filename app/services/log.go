package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// LogService surfaces the on-disk log to the frontend.
type LogService struct {
	log     *zerolog.Logger
	logFile string
}

// LogEntry is one parsed log line.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// NewLogService creates a new LogService
func NewLogService(log *zerolog.Logger, logFile string) *LogService {
	return &LogService{log: log, logFile: logFile}
}

// GetRecentLogs returns up to limit entries from the end of the log file.
func (s *LogService) GetRecentLogs(limit int) ([]LogEntry, error) {
	if s.logFile == "" {
		return []LogEntry{}, nil
	}

	f, err := os.Open(s.logFile)
	if err != nil {
		if os.IsNotExist(err) {
			return []LogEntry{}, nil
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	var entries []LogEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var raw struct {
			Time    string `json:"time"`
			Level   string `json:"level"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
			continue // skip console-format or partial lines
		}
		entries = append(entries, LogEntry{Timestamp: raw.Time, Level: raw.Level, Message: raw.Message})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// ExportDiagnostics copies the current log file to outputPath so users can
// attach it to a bug report.
func (s *LogService) ExportDiagnostics(outputPath string) error {
	s.log.Info().Str("output", outputPath).Msg("[LogService] ExportDiagnostics")

	if s.logFile == "" {
		return fmt.Errorf("no log file configured")
	}
	src, err := os.Open(s.logFile)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	dst, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy log file: %w", err)
	}
	return dst.Sync()
}
