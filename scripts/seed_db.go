package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"stayhub/internal/database"
	"stayhub/internal/models"
	"stayhub/internal/service"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		seedPath = flag.String("seed", "configs/seed.yaml", "path to seed.yaml")
		dbPath   = flag.String("db", "./data/stayhub.db", "path to sqlite db")
	)
	flag.Parse()

	seed, err := readSeed(*seedPath)
	if err != nil {
		return err
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	before, err := db.ListProperties(ctx, models.PropertyFilter{Limit: models.MaxListLimit})
	if err != nil {
		return fmt.Errorf("count properties: %w", err)
	}
	if err := service.NewSeeder(db, &logger).Apply(ctx, seed); err != nil {
		return err
	}
	after, err := db.ListProperties(ctx, models.PropertyFilter{Limit: models.MaxListLimit})
	if err != nil {
		return fmt.Errorf("count properties: %w", err)
	}

	fmt.Printf("done: users=%d properties_created=%d\n", len(seed.Users), len(after)-len(before))
	return nil
}

// readSeed rejects unknown keys so typos in the file do not pass silently.
func readSeed(path string) (service.SeedData, error) {
	var seed service.SeedData
	data, err := os.ReadFile(path)
	if err != nil {
		return seed, fmt.Errorf("read seed: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return seed, fmt.Errorf("parse seed: %w", err)
	}
	if len(seed.Users) == 0 && len(seed.Properties) == 0 {
		return seed, errors.New("seed file is empty")
	}
	return seed, nil
}
