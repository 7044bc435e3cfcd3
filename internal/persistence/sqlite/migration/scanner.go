package migration

import (
	"crypto/sha256"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var fileNamePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

// FSScanner reads migrations from a directory of an fs.FS.
type FSScanner struct {
	fsys fs.FS
	dir  string
}

// NewScanner returns a scanner over dir within fsys.
func NewScanner(fsys fs.FS, dir string) *FSScanner {
	return &FSScanner{fsys: fsys, dir: dir}
}

// ScanMigrations returns every migration file sorted by numeric version.
// Non-SQL entries are ignored.
func (s *FSScanner) ScanMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(s.fsys, s.dir)
	if err != nil {
		return nil, newMigrationError("", s.dir, "read directory", err)
	}

	migrations := make([]Migration, 0, len(entries))
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		m, err := s.parse(entry.Name())
		if err != nil {
			return nil, err
		}
		v, _ := strconv.Atoi(m.Version)
		if other, dup := seen[v]; dup {
			return nil, newMigrationError(m.Version, entry.Name(), "check duplicates",
				fmt.Errorf("%w: %s and %s", ErrDuplicateVersion, other, entry.Name()))
		}
		seen[v] = entry.Name()
		migrations = append(migrations, m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		vi, _ := strconv.Atoi(migrations[i].Version)
		vj, _ := strconv.Atoi(migrations[j].Version)
		return vi < vj
	})
	return migrations, nil
}

func (s *FSScanner) parse(name string) (Migration, error) {
	filePath := path.Join(s.dir, name)
	matches := fileNamePattern.FindStringSubmatch(name)
	if matches == nil {
		return Migration{}, newMigrationError("", filePath, "validate filename",
			fmt.Errorf("%w: %q does not match {version}_{description}.sql", ErrInvalidMigrationFile, name))
	}

	content, err := fs.ReadFile(s.fsys, filePath)
	if err != nil {
		return Migration{}, newMigrationError(matches[1], filePath, "read file", err)
	}
	sqlText := string(content)
	if len(splitStatements(sqlText)) == 0 {
		return Migration{}, newMigrationError(matches[1], filePath, "validate content",
			fmt.Errorf("%w: no SQL statements", ErrInvalidMigrationFile))
	}

	description := descriptionFromContent(sqlText)
	if description == "" {
		description = strings.ReplaceAll(matches[2], "_", " ")
	}

	return Migration{
		Version:     matches[1],
		Description: description,
		SQL:         sqlText,
		FilePath:    filePath,
		Checksum:    fmt.Sprintf("%x", sha256.Sum256(content)),
	}, nil
}

// descriptionFromContent returns the text of a leading "-- Description:" comment.
func descriptionFromContent(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "--") {
			break
		}
		if d, ok := strings.CutPrefix(line, "-- Description:"); ok {
			return strings.TrimSpace(d)
		}
	}
	return ""
}

// splitStatements splits a script on semicolons and drops comment-only lines.
// Migration files must not contain semicolons inside string literals or triggers.
func splitStatements(script string) []string {
	statements := make([]string, 0)
	for _, chunk := range strings.Split(script, ";") {
		lines := make([]string, 0)
		for _, line := range strings.Split(chunk, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "--") {
				continue
			}
			lines = append(lines, line)
		}
		if len(lines) > 0 {
			statements = append(statements, strings.Join(lines, "\n"))
		}
	}
	return statements
}
