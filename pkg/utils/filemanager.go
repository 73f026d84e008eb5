// =============================================================================
// Faktury Export - File Manager Utility
// =============================================================================
//
// This module provides the file handling of the export command:
//   - Output file naming from a format with placeholders
//   - Writing the export into the output directory
//   - Archival (copying the export into the archive directory)
//   - The run summary log
//
// ARCHIVAL STRATEGY:
//   - Exports are copied, not moved, so they stay in the output directory
//   - Archive copies may go into date-based subdirectories
//   - The ledger itself is never touched
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultFileNameFormat names exports by their export date.
const DefaultFileNameFormat = "faktury-{date}.xml"

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles the files written by an export run.
type FileManager struct {
	// OutputDir is where exports and summary logs are written.
	OutputDir string

	// ArchiveDir receives copies of exports. Empty disables archival.
	ArchiveDir string

	// UseDateSubdirs creates date-based subdirectories in the archive.
	// Example: archive/2024/03/10/faktury-2024-03-10.xml
	UseDateSubdirs bool

	// Now is the clock used for names and timestamps; nil means time.Now.
	Now func() time.Time
}

// NewFileManager creates a FileManager for the given directories.
func NewFileManager(outputDir, archiveDir string) *FileManager {
	return &FileManager{OutputDir: outputDir, ArchiveDir: archiveDir}
}

func (fm *FileManager) now() time.Time {
	if fm.Now != nil {
		return fm.Now()
	}
	return time.Now()
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates the output and archive directories.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.OutputDir, fm.ArchiveDir} {
		if err := EnsureDir(dir); err != nil {
			return err
		}
	}
	return nil
}

// EnsureDir creates dir and its parents. An empty dir is a no-op.
func EnsureDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName expands a file-name format.
//
// Placeholders:
//
//	{uuid}      - a random UUID
//	{timestamp} - the current time (YYYYMMDD_HHMMSS)
//	{date}      - the current date (YYYY-MM-DD)
//	{time}      - the current time (HHMMSS)
//	{<key>}     - any entry of params
//
// The result always ends in ".xml".
func GenerateOutputFileName(format string, now time.Time, params map[string]string) string {
	if format == "" {
		format = DefaultFileNameFormat
	}

	replacements := map[string]string{
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("2006-01-02"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	if strings.Contains(result, "{uuid}") {
		result = strings.ReplaceAll(result, "{uuid}", uuid.New().String())
	}
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if !strings.HasSuffix(strings.ToLower(result), ".xml") {
		result += ".xml"
	}
	return result
}

// WriteOutput writes body into the output directory under the name produced
// by format, and returns the written path.
func (fm *FileManager) WriteOutput(format string, body []byte) (string, error) {
	if err := EnsureDir(fm.OutputDir); err != nil {
		return "", err
	}
	path := filepath.Join(fm.OutputDir, GenerateOutputFileName(format, fm.now(), nil))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write output: %w", err)
	}
	return path, nil
}

// WriteSibling writes body next to path, with path's extension replaced by ext.
func WriteSibling(path, ext string, body []byte) (string, error) {
	sibling := strings.TrimSuffix(path, filepath.Ext(path)) + ext
	if err := os.WriteFile(sibling, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", sibling, err)
	}
	return sibling, nil
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveFile copies a file into the archive directory and returns the copy's
// path.
func (fm *FileManager) ArchiveFile(filePath string) (string, error) {
	if fm.ArchiveDir == "" {
		return "", fmt.Errorf("no archive directory configured")
	}

	archivePath := fm.archivePath(filePath)
	if err := EnsureDir(filepath.Dir(archivePath)); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := copyFile(filePath, archivePath); err != nil {
		return "", fmt.Errorf("failed to copy file to archive: %w", err)
	}
	return archivePath, nil
}

func (fm *FileManager) archivePath(filePath string) string {
	fileName := filepath.Base(filePath)
	if fm.UseDateSubdirs {
		now := fm.now()
		return filepath.Join(
			fm.ArchiveDir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
			fileName,
		)
	}
	return filepath.Join(fm.ArchiveDir, fileName)
}

// =============================================================================
// RUN SUMMARY
// =============================================================================

// RunSummary describes one export run.
type RunSummary struct {
	StartTime time.Time
	EndTime   time.Time

	Source   string
	Sheet    string
	Rows     int
	Billable int
	Groups   int
	Dropped  int
	Invoices int

	OutputFile  string
	SchemaFile  string
	ArchivePath string

	Warnings []string
}

// WriteSummaryLog writes the run summary into the output directory and
// returns its path.
func (fm *FileManager) WriteSummaryLog(summary RunSummary) (string, error) {
	if err := EnsureDir(fm.OutputDir); err != nil {
		return "", err
	}
	summaryPath := filepath.Join(fm.OutputDir,
		fmt.Sprintf("export_summary_%s.txt", summary.StartTime.Format("20060102_150405")))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "Faktury Export - Run Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Start Time:  %s\n"+
		"  End Time:    %s\n"+
		"  Duration:    %s\n"+
		"  Source:      %s\n",
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String(),
		summary.Source)
	if summary.Sheet != "" {
		fmt.Fprintf(writer, "  Sheet:       %s\n", summary.Sheet)
	}

	fmt.Fprintf(writer, "\nStatistics:\n"+
		"  Rows:          %d\n"+
		"  Billable:      %d\n"+
		"  Groups:        %d\n"+
		"  Dropped:       %d\n"+
		"  Invoices:      %d\n\n",
		summary.Rows, summary.Billable, summary.Groups, summary.Dropped, summary.Invoices)

	writer.WriteString("Files:\n")
	for _, f := range []struct{ label, path string }{
		{"Output", summary.OutputFile},
		{"Schema", summary.SchemaFile},
		{"Archive", summary.ArchivePath},
	} {
		if f.path != "" {
			fmt.Fprintf(writer, "  %-8s %s\n", f.label+":", f.path)
		}
	}

	if len(summary.Warnings) > 0 {
		writer.WriteString("\nWarnings:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, w := range summary.Warnings {
			fmt.Fprintf(writer, "  - %s\n", w)
		}
	}

	writer.WriteString("\n================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}
	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}
	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
