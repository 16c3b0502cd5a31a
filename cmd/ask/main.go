// Command ask is an interactive console for querying the indexed corpus.
// Answers stream token by token; cited sources are printed afterwards.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"

	"docqa/internal/config"
	"docqa/internal/db"
	"docqa/internal/embedding"
	"docqa/internal/logger"
	"docqa/internal/rag"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Setup(cfg.EnableLogging)

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer pool.Close()

	repo := rag.NewPgRepository(pool)

	geminiClient, err := embedding.NewGeminiClient(ctx)
	if err != nil {
		log.Fatalf("failed to init embeddings client: %v", err)
	}

	service, err := rag.NewService(cfg, repo, geminiClient, rag.NewReranker(cfg))
	if err != nil {
		log.Fatalf("failed to init rag service: %v", err)
	}

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Println(boldGreen("Document QA console"))
	fmt.Printf("Provider: %s, model: %s\n", boldCyan(cfg.Provider), boldCyan(cfg.Model()))
	fmt.Println("Type your question and press Enter. Type 'exit' to quit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("Question: ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" {
			break
		}

		fmt.Println()
		result, err := service.AskStream(ctx, rag.AskRequest{Question: question}, func(chunk string) error {
			fmt.Print(chunk)
			return nil
		})
		fmt.Println()
		if err != nil {
			fmt.Println(color.RedString("error: %v", err))
			fmt.Println()
			continue
		}

		if len(result.Sources) > 0 {
			fmt.Println()
			fmt.Println(yellow("Sources:"))
			for _, s := range result.Sources {
				fmt.Printf("- %s\n", s)
			}
		}
		fmt.Println()
	}

	fmt.Println("Bye.")
}
