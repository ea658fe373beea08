package cryptoscan

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/sourcegraph/conc/pool"

	"github.com/pqshift/pqshift/internal/logging"
)

// ErrScanTimeout is returned when the scan exceeds its wall-clock budget.
var ErrScanTimeout = errors.New("scan exceeded time budget")

// supportedExtensions lists the file extensions eligible for scanning.
var supportedExtensions = map[string]bool{
	".py": true, ".java": true, ".js": true, ".ts": true,
	".cpp": true, ".c": true, ".h": true, ".hpp": true,
	".cs": true, ".go": true, ".rs": true, ".rb": true,
	".php": true, ".swift": true, ".kt": true,
}

// moduleMarkers are path segments that conventionally root a module tree;
// the segment following a marker is taken as the module name.
var moduleMarkers = map[string]bool{
	"src": true, "lib": true, "pkg": true, "app": true, "modules": true,
}

// maxSnippetLen caps the stored code snippet length.
const maxSnippetLen = 200

// DirScanner walks a directory tree and applies a LineMatcher to every
// eligible file. Files are scanned concurrently; results are merged in
// file-enumeration order, then line order, then family order, so output is
// deterministic regardless of worker scheduling.
type DirScanner struct {
	matcher LineMatcher
	workers int
}

// NewDirScanner creates a scanner using the given matcher. workers caps the
// number of files scanned concurrently; values below 1 mean sequential.
func NewDirScanner(matcher LineMatcher, workers int) *DirScanner {
	if workers < 1 {
		workers = 1
	}
	return &DirScanner{matcher: matcher, workers: workers}
}

// Scan recursively scans rootDir. Per-file errors are logged and skipped;
// a directory-walk failure or an exceeded context deadline aborts the scan.
func (s *DirScanner) Scan(ctx context.Context, rootDir string) (*Result, error) {
	files, err := s.enumerate(ctx, rootDir)
	if err != nil {
		return nil, err
	}

	type fileResult struct {
		findings []Finding
		scanned  bool
	}
	results := make([]fileResult, len(files))

	p := pool.New().WithMaxGoroutines(s.workers)
	for i, path := range files {
		i, path := i, path
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			findings, err := s.scanFile(path)
			if err != nil {
				logging.L.Warnw("skipping unreadable file", "path", path, "error", err)
				return
			}
			results[i] = fileResult{findings: findings, scanned: true}
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrScanTimeout
		}
		return nil, fmt.Errorf("scan cancelled: %w", err)
	}

	// Merge in enumeration order; per-file findings are already in line
	// order then family order.
	res := &Result{}
	for _, fr := range results {
		if fr.scanned {
			res.FilesScanned++
			res.Findings = append(res.Findings, fr.findings...)
		}
	}
	return res, nil
}

// enumerate walks rootDir and returns eligible file paths in walk order.
// Unsupported extensions and directories are skipped without error; a walk
// error on the tree itself is fatal.
func (s *DirScanner) enumerate(ctx context.Context, rootDir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walking %s: %w", path, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		if !supportedExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrScanTimeout
		}
		return nil, fmt.Errorf("scanning directory %s: %w", rootDir, err)
	}
	return files, nil
}

// scanFile scans a single file line by line. Undecodable bytes are tolerated;
// lines are matched as raw text.
func (s *DirScanner) scanFile(path string) ([]Finding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	module := moduleName(path)

	var findings []Finding
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		for _, m := range s.matcher.Match(line) {
			findings = append(findings, Finding{
				FilePath:    path,
				LineNumber:  lineNum,
				Algorithm:   m.Algorithm,
				KeySize:     m.KeySize,
				CodeSnippet: snippet(line),
				ModuleName:  module,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading lines: %w", err)
	}
	return findings, nil
}

// snippet trims the line and caps it at maxSnippetLen characters. The cut is
// made on a rune boundary so multi-byte text stays valid UTF-8.
func snippet(line string) string {
	trimmed := strings.TrimSpace(line)
	if utf8.RuneCountInString(trimmed) <= maxSnippetLen {
		return trimmed
	}
	return string([]rune(trimmed)[:maxSnippetLen])
}

// moduleName derives a module name from the file path: the segment after the
// first conventional root marker, else the parent directory name, else
// "unknown".
func moduleName(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	for i, part := range parts {
		if moduleMarkers[part] && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	parent := filepath.Base(filepath.Dir(path))
	if parent == "." || parent == string(filepath.Separator) || parent == "/" {
		return "unknown"
	}
	return parent
}
