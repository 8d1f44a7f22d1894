package queue

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"quotebot/pkg/logx"
)

// DefaultMaxLength matches the X post limit.
const DefaultMaxLength = 280

// Appender is the part of storage.Store the loader needs.
type Appender interface {
	Append(ctx context.Context, content string) (int64, error)
}

// SkippedLine is a raw line that was not imported.
type SkippedLine struct {
	Line   int
	Length int
	Text   string
}

type ImportResult struct {
	Added   int
	Blank   int
	Skipped []SkippedLine
}

// Import appends one item per non-blank line of r, in file order. Lines
// longer than maxLength characters are skipped with a warning.
// A maxLength <= 0 uses DefaultMaxLength.
func Import(ctx context.Context, dst Appender, r io.Reader, maxLength int, log logx.Logger) (ImportResult, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	var res ImportResult
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			res.Blank++
			continue
		}
		if n := utf8.RuneCountInString(text); n > maxLength {
			res.Skipped = append(res.Skipped, SkippedLine{Line: line, Length: n, Text: text})
			log.Warn("item too long, not imported",
				logx.Int("line", line),
				logx.Int("length", n),
				logx.Int("max_length", maxLength),
			)
			continue
		}
		if _, err := dst.Append(ctx, text); err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}
		res.Added++
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("read items: %w", err)
	}
	log.Info("items imported", logx.Int("added", res.Added), logx.Int("skipped", len(res.Skipped)))
	return res, nil
}
