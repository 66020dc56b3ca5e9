package data

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/honest0623-ship-it/IDK-Voca/internal/dal"
)

const (
	minFields = 3
	maxFields = 6
)

type ParsingError struct {
	InvalidLines []int
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("parsing error: invalidLines=%v", e.InvalidLines)
}

// Parse reads a pipe-separated catalog file line by line and streams words
// to out. Lines look like:
//
//	target|meaning|level|example_en|example_native|root_word
//
// with the last three fields optional. Malformed lines are collected and
// reported at the end without stopping the stream.
func Parse(ctx context.Context, in io.ReadCloser, out chan<- dal.Word) error {
	defer close(out)
	defer in.Close()

	scanner := bufio.NewScanner(in)
	invalidLines := make([]int, 0, 10) //nolint:mnd // 10 is the expected capacity
	linNum := 0
	for scanner.Scan() {
		linNum++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		word, ok := parseLine(line)
		if !ok {
			invalidLines = append(invalidLines, linNum)
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case out <- word: // continue
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan file: %w", err)
	}
	if len(invalidLines) > 0 {
		return &ParsingError{InvalidLines: invalidLines}
	}

	return nil
}

func parseLine(line string) (dal.Word, bool) {
	parts := strings.Split(line, "|")
	if len(parts) < minFields || len(parts) > maxFields {
		return dal.Word{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	level, err := strconv.Atoi(parts[2])
	if err != nil || level < 1 || level > 30 {
		return dal.Word{}, false
	}

	w := dal.Word{
		TargetWord: strings.ToLower(parts[0]),
		Meaning:    parts[1],
		Level:      level,
	}
	if w.TargetWord == "" || w.Meaning == "" {
		return dal.Word{}, false
	}

	if len(parts) > 3 {
		w.ExampleEN = parts[3]
	}
	if len(parts) > 4 {
		w.ExampleNative = parts[4]
	}
	if len(parts) > 5 {
		w.RootWord = parts[5]
	}

	return w, true
}
