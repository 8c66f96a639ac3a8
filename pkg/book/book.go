// Package book is a lazy, thread-safe cursor over tournament opening lines. It is not
// an engine-internal opening book consulted during search: it hands out starting
// positions to the scheduler.
package book

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/boutlab/bout/pkg/board/fen"
	"github.com/google/uuid"
)

// Opening is one starting point for a game: a FEN and the forced moves (if any) played
// from it before the engines take over.
type Opening struct {
	ID    uuid.UUID
	FEN   string
	Moves []string
}

// Book is a thread-safe, round-robin cursor over a fixed list of openings.
type Book struct {
	mu       sync.Mutex
	openings []Opening
	next     int
}

// New returns a Book over the given openings. Panics if openings is empty: a tournament
// with no starting positions is a configuration error, caught before any match starts.
func New(openings []Opening) *Book {
	if len(openings) == 0 {
		panic("book: no openings")
	}
	return &Book{openings: openings}
}

// Load reads an opening book from path, one opening per line. A line is either a bare
// FEN, "startpos", or "<fen-or-startpos>;move1 move2 ..." giving the forced moves played
// before engines take over. Blank lines and lines starting with "#" are skipped.
func Load(path string) (*Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open book %q: %w", path, err)
	}
	defer f.Close()

	var openings []Opening
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		record, movesField, _ := strings.Cut(line, ";")
		record = strings.TrimSpace(record)

		record, err := normalizeFEN(record)
		if err != nil {
			return nil, fmt.Errorf("book %q: %w", path, err)
		}

		var moves []string
		if movesField = strings.TrimSpace(movesField); movesField != "" {
			moves = strings.Fields(movesField)
		}

		openings = append(openings, Opening{ID: uuid.New(), FEN: record, Moves: moves})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read book %q: %w", path, err)
	}
	if len(openings) == 0 {
		return nil, fmt.Errorf("book %q: no openings", path)
	}
	return New(openings), nil
}

func normalizeFEN(record string) (string, error) {
	if record == "startpos" || record == "" {
		return fen.Initial, nil
	}
	if _, _, _, _, err := fen.Decode(record); err != nil {
		return "", fmt.Errorf("invalid opening fen %q: %w", record, err)
	}
	return record, nil
}

// Next returns the next opening and its index, wrapping around once the list is
// exhausted (a tournament may request more games than openings supplied).
func (b *Book) Next() (Opening, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := b.next % len(b.openings)
	opening := b.openings[idx]
	b.next++
	return opening, idx
}

// Len returns the number of distinct openings in the book.
func (b *Book) Len() int {
	return len(b.openings)
}
