package main

import (
	"context"
	"fmt"
	"time"

	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/database"
	"github.com/stemsi/exstem-assessment/internal/engine"
	"github.com/stemsi/exstem-assessment/internal/logger"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

func opts(texts ...string) []engine.Option {
	out := make([]engine.Option, len(texts))
	for i, t := range texts {
		out[i] = engine.Option{Text: t}
	}
	return out
}

// defaultBank is enough for the default TEST_QUESTION_TOTAL of 6.
var defaultBank = []engine.Question{
	{
		Subject:            "Math",
		Prompt:             "What is 12 × 8?",
		Options:            opts("86", "96", "104", "112"),
		CorrectOptionIndex: 1,
		Difficulty:         engine.DifficultyEasy,
	},
	{
		Subject:            "Math",
		Prompt:             "Solve for x: 3x + 7 = 22",
		Options:            opts("3", "4", "5", "6"),
		CorrectOptionIndex: 2,
		Difficulty:         engine.DifficultyMedium,
	},
	{
		Subject:            "Science",
		Prompt:             "Which planet is known as the Red Planet?",
		Options:            opts("Venus", "Jupiter", "Mars", "Saturn"),
		CorrectOptionIndex: 2,
		Difficulty:         engine.DifficultyEasy,
	},
	{
		Subject:            "Science",
		Prompt:             "What is the chemical symbol for sodium?",
		Options:            opts("So", "Sd", "Na", "S"),
		CorrectOptionIndex: 2,
		Difficulty:         engine.DifficultyMedium,
	},
	{
		Subject:            "Reasoning",
		Prompt:             "What comes next: 2, 6, 12, 20, 30, ?",
		Options:            opts("40", "42", "44", "36"),
		CorrectOptionIndex: 1,
		Difficulty:         engine.DifficultyMedium,
	},
	{
		Subject:            "Reasoning",
		Prompt:             "If all bloops are razzies and all razzies are lazzies, are all bloops lazzies?",
		Options:            opts("Yes", "No", "Only some", "Cannot be determined"),
		CorrectOptionIndex: 0,
		Difficulty:         engine.DifficultyHard,
	},
}

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	questionRepo := repository.NewQuestionRepository(pool)

	count, err := questionRepo.Count(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to count questions")
	}
	if count > 0 {
		fmt.Printf("Question bank already holds %d questions, skipping seed\n", count)
		return
	}

	fmt.Printf("=== Seeding %d Questions ===\n", len(defaultBank))
	for _, q := range defaultBank {
		rec, err := questionRepo.Create(ctx, q)
		if err != nil {
			log.Fatal().Err(err).Str("prompt", q.Prompt).Msg("Failed to create question")
		}
		fmt.Printf("Created [%s] %s (%s)\n", rec.Subject, rec.Prompt, rec.ID)
	}
	fmt.Println("Done.")
}
