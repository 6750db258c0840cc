package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LogStorage writes step output to files, one file per executed step, laid
// out as <base>/<runID>/<job>/<NN>_<step>.log.
type LogStorage struct {
	BaseDir string
}

func NewLogStorage(baseDir string) *LogStorage {
	return &LogStorage{BaseDir: baseDir}
}

// SaveStepLog writes one step's combined output and returns the log path.
func (ls *LogStorage) SaveStepLog(runID, job string, stepNum int, label, output string) (string, error) {
	dir := filepath.Join(ls.BaseDir, sanitize(runID), sanitize(job))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	filename := fmt.Sprintf("%02d_%s.log", stepNum, sanitize(label))
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(output), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// ReadLog reads a previously saved log. The path must sit under BaseDir;
// anything else is rejected.
func (ls *LogStorage) ReadLog(path string) ([]byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	base, err := filepath.Abs(ls.BaseDir)
	if err != nil {
		return nil, err
	}
	if abs != base && !strings.HasPrefix(abs, base+string(filepath.Separator)) {
		return nil, fmt.Errorf("log path %q is outside the log directory", path)
	}
	return os.ReadFile(abs)
}

// sanitize reduces a step or job name to filename-safe characters.
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case r == ' ', r == '/':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "step"
	}
	return b.String()
}
