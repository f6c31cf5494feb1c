//go:build ignore

// Package main generates a synthetic Markdown documentation tree for
// indexing benchmarks and manual testing.
// Usage: go run scripts/generate-docs-corpus.go -files 500 -output testdata/corpus
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 500, "Number of Markdown files to generate")
	outputDir = flag.String("output", "testdata/corpus", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var nouns = []string{
	"pipeline", "scheduler", "cache", "router", "broker", "indexer",
	"collector", "gateway", "registry", "worker", "session", "snapshot",
}

var adjectives = []string{
	"incremental", "distributed", "resilient", "adaptive", "bounded",
	"concurrent", "persistent", "ephemeral", "hierarchical", "atomic",
}

var domains = []string{
	"authentication", "rate limiting", "log aggregation", "job scheduling",
	"data replication", "service discovery", "request tracing",
	"configuration management", "event streaming", "state reconciliation",
}

var sections = []string{"Overview", "Installation", "Configuration", "Usage", "Troubleshooting", "FAQ"}

const paragraph = "The %s %s coordinates %s across the cluster. It exposes a small API " +
	"surface and degrades gracefully when downstream components are unavailable. " +
	"Operators tune its behavior through the standard configuration file; defaults " +
	"are chosen for single-node deployments."

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "create output dir: %v\n", err)
		os.Exit(1)
	}

	generated := 0
	for i := 0; i < *numFiles; i++ {
		if err := generateDoc(rng, i); err != nil {
			fmt.Fprintf(os.Stderr, "generate file %d: %v\n", i, err)
			os.Exit(1)
		}
		generated++
	}

	fmt.Printf("Generated %d files in %s.\n", generated, *outputDir)
}

func generateDoc(rng *rand.Rand, index int) error {
	noun := nouns[rng.Intn(len(nouns))]
	adj := adjectives[rng.Intn(len(adjectives))]
	domain := domains[rng.Intn(len(domains))]

	var b strings.Builder
	fmt.Fprintf(&b, "# %s %s\n\n", strings.Title(adj), strings.Title(noun)) //nolint:staticcheck
	fmt.Fprintf(&b, paragraph+"\n\n", adj, noun, domain)

	nSections := 2 + rng.Intn(len(sections)-1)
	for s := 0; s < nSections; s++ {
		fmt.Fprintf(&b, "## %s\n\n", sections[s])
		nParas := 1 + rng.Intn(3)
		for p := 0; p < nParas; p++ {
			d := domains[rng.Intn(len(domains))]
			fmt.Fprintf(&b, paragraph+"\n\n", adjectives[rng.Intn(len(adjectives))], noun, d)
		}
	}

	dir := filepath.Join(*outputDir, noun)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	filename := filepath.Join(dir, fmt.Sprintf("%s_%d.md", adj, index))
	return os.WriteFile(filename, []byte(b.String()), 0644)
}
