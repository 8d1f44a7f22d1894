package queue

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"quotebot/pkg/randx"
)

// ShuffleLines permutes lines in place (Fisher-Yates).
func ShuffleLines(lines []string, rng randx.Source) {
	for i := len(lines) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		lines[i], lines[j] = lines[j], lines[i]
	}
}

// ShuffleFile shuffles the lines of a raw item file and rewrites it
// atomically. Blank lines are dropped. It returns the number of lines written.
func ShuffleFile(path string, rng randx.Source) (int, error) {
	if rng == nil {
		rng = randx.New(0)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var lines []string
	for _, l := range strings.Split(string(b), "\n") {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}
	ShuffleLines(lines, rng)

	var out bytes.Buffer
	for _, l := range lines {
		out.WriteString(l)
		out.WriteByte('\n')
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(out.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return 0, err
	}
	_ = os.Chmod(tmpName, info.Mode().Perm())
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return 0, err
	}
	return len(lines), nil
}
