package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/honest0623-ship-it/IDK-Voca/internal/dal"
	sqlrepo "github.com/honest0623-ship-it/IDK-Voca/internal/dal/sql"
	"github.com/honest0623-ship-it/IDK-Voca/internal/data"
)

var (
	source string
	dbPath string
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	if err := validate(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		fmt.Printf("failed to open database: %v\n", err)
		os.Exit(2)
	}
	defer db.Close()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo, err := sqlrepo.NewRepository(ctx, db, log)
	if err != nil {
		fmt.Printf("failed to init repository: %v\n", err)
		os.Exit(2)
	}

	f, err := os.Open(source)
	if err != nil {
		fmt.Printf("failed to open source file: %v\n", err)
		os.Exit(3)
	}

	words := make(chan dal.Word)
	parseErr := make(chan error, 1)
	go func() {
		parseErr <- data.Parse(ctx, f, words)
	}()

	imported := 0
	for word := range words {
		if err = repo.UpsertWord(ctx, word); err != nil {
			fmt.Printf("failed to upsert word %q: %v\n", word.TargetWord, err)
			os.Exit(4)
		}
		imported++
	}

	if err = <-parseErr; err != nil {
		var pErr *data.ParsingError
		if errors.As(err, &pErr) {
			fmt.Printf("imported %d words; skipped invalid lines: %v\n", imported, pErr.InvalidLines)
			return
		}
		fmt.Printf("failed to parse source file: %v\n", err)
		os.Exit(3)
	}

	fmt.Printf("imported %d words\n", imported)
}

func validate() error {
	if source == "" {
		return errors.New("source file is required")
	}

	if dbPath == "" {
		return errors.New("database path is required")
	}

	return nil
}

func init() {
	flag.StringVar(&source, "source", "", "source file")
	flag.StringVar(&dbPath, "db", "", "database path")
	flag.Parse()
}
