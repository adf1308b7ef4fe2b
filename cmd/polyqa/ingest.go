package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/polyqa/internal/domain"
	logpkg "github.com/kailas-cloud/polyqa/internal/logger"
)

// maxLineSize bounds one JSONL document.
const maxLineSize = 4 << 20

// documentLine is one line of the ingest file.
type documentLine struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

func ingestCMD() *cobra.Command {
	var reindex bool
	ingest := &cobra.Command{
		Use:   "ingest <file.jsonl>",
		Short: "Load knowledge-base documents, one JSON object per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(filepath.Clean(args[0]))
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer func() { _ = f.Close() }()

			a, err := newApp(cmd.Context(), "cli")
			if err != nil {
				return err
			}
			defer a.close()

			ctx, usage := domain.NewContextWithUsage(logpkg.ContextWithLogger(cmd.Context(), a.logger))
			if reindex {
				if err := a.ingest.Reindex(ctx); err != nil {
					return err
				}
			}
			total, err := ingestFile(ctx, a.logger, a.ingest, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "indexed %d documents (embedding tokens: %d)\n", total, usage.EmbeddingTokens)
			return nil
		},
	}
	ingest.Flags().BoolVar(&reindex, "reindex", false, "drop and recreate the knowledge index before loading")
	return ingest
}

// batchIngester is the part of the ingest service the loader drives.
type batchIngester interface {
	Ingest(ctx context.Context, docs []domain.Document) (int, error)
	MaxBatchSize() int
}

// ingestFile indexes the documents in r in batches of the ingest service's maximum size.
// Batches already indexed stay indexed when a later one fails.
func ingestFile(ctx context.Context, log *zap.Logger, ing batchIngester, r io.Reader) (int, error) {
	docs, err := readDocuments(r)
	if err != nil {
		return 0, err
	}

	batchSize := ing.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = len(docs)
	}
	total := 0
	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))
		n, err := ing.Ingest(ctx, docs[start:end:end])
		if err != nil {
			return total, fmt.Errorf("ingest batch at document %d: %w", start, err)
		}
		total += n
		log.Info("Batch indexed", zap.Int("documents", n), zap.Int("total", total))
	}
	return total, nil
}

// readDocuments parses JSONL. Blank lines are skipped; a malformed line aborts with its number.
func readDocuments(r io.Reader) ([]domain.Document, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var docs []domain.Document
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var dl documentLine
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&dl); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		docs = append(docs, domain.Document{ID: dl.ID, Content: dl.Content, Metadata: dl.Metadata})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	return docs, nil
}
