// Command import-doc indexes documents into the passage store. It either
// walks the local documents directory or crawls a website, embedding each
// passage before insert.
package main

import (
	"context"
	"flag"
	"log"

	"docqa/internal/config"
	"docqa/internal/db"
	"docqa/internal/embedding"
	"docqa/internal/ingest"
	"docqa/internal/logger"
	"docqa/internal/rag"
)

func main() {
	fromFiles := flag.Bool("from-files", false, "import every supported file under the documents directory")
	path := flag.String("path", "", "override the documents directory for this run")
	fromURL := flag.Bool("from-url", false, "crawl a website and import its pages")
	baseURL := flag.String("base-url", "", "crawl starting point (required with --from-url)")
	maxPages := flag.Int("max-pages", 30, "crawl page limit")
	flag.Parse()

	if !*fromFiles && !*fromURL {
		log.Fatal("nothing to do: pass --from-files or --from-url")
	}

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Setup(cfg.EnableLogging)

	if *path != "" {
		cfg.FileDir = *path
	}

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

	if *fromFiles {
		if err := importFiles(ctx, cfg, repo, geminiClient); err != nil {
			log.Fatalf("file import failed: %v", err)
		}
	}

	if *fromURL {
		if *baseURL == "" {
			log.Fatal("--from-url requires --base-url")
		}
		if err := importSite(ctx, cfg, repo, geminiClient, *baseURL, *maxPages); err != nil {
			log.Fatalf("site import failed: %v", err)
		}
	}
}

func importFiles(ctx context.Context, cfg *config.Config, repo rag.Repository, embed rag.EmbeddingsClient) error {
	passages, err := ingest.NewLoader(cfg).Load()
	if err != nil {
		return err
	}
	log.Printf("loaded %d passages from %s", len(passages), cfg.FileDir)

	return storePassages(ctx, repo, embed, passages)
}

func importSite(ctx context.Context, cfg *config.Config, repo rag.Repository, embed rag.EmbeddingsClient, baseURL string, maxPages int) error {
	imported := 0

	err := ingest.Crawl(baseURL, maxPages, func(pageURL, title, text string) error {
		var passages []rag.Passage
		for _, chunk := range ingest.SplitText(text, cfg.ChunkSize, cfg.ChunkOverlap) {
			passages = append(passages, rag.Passage{
				Content: chunk,
				Source:  title,
			})
		}
		if err := storePassages(ctx, repo, embed, passages); err != nil {
			return err
		}
		imported += len(passages)
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("imported %d passages from %s", imported, baseURL)
	return nil
}

func storePassages(ctx context.Context, repo rag.Repository, embed rag.EmbeddingsClient, passages []rag.Passage) error {
	for i := range passages {
		vec, err := embed.Embed(ctx, passages[i].Content)
		if err != nil {
			return err
		}
		id, err := repo.InsertPassage(ctx, &passages[i], vec)
		if err != nil {
			return err
		}
		log.Printf("stored passage id=%d source=%s", id, passages[i].Source)
	}
	return nil
}
