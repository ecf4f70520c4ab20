// Package main provides the verify command-line tool for checking exported reports against their digest.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"cdrlens/internal/report"
)

func main() {
	inputPath := flag.String("input", "", "Path to a Markdown or JSON report")
	flag.Parse()

	if *inputPath == "" {
		fmt.Println("Usage: verify -input <report.md|report.json>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	content, err := os.ReadFile(*inputPath)
	if err != nil {
		log.Fatalf("Error reading file: %v\n", err)
	}

	fmt.Printf("📂 Reading: %s (%d bytes)\n", *inputPath, len(content))

	switch strings.ToLower(filepath.Ext(*inputPath)) {
	case ".md", ".markdown":
		meta, err := report.VerifyMarkdown(string(content))
		if err != nil {
			log.Fatalf("❌ Verification failed: %v\n", err)
		}

		fmt.Printf("✅ Signature valid (run %s, generated %s)\n", meta.RunID, meta.GeneratedAt.Format("2006-01-02 15:04:05"))

	case ".json":
		if err := report.ValidateJSON(content); err != nil {
			log.Fatalf("❌ Schema check failed: %v\n", err)
		}

		var doc report.Document
		if err := json.Unmarshal(content, &doc); err != nil {
			log.Fatalf("Error decoding report: %v\n", err)
		}

		if err := doc.Verify(); err != nil {
			log.Fatalf("❌ Verification failed: %v\n", err)
		}

		fmt.Printf("✅ Digest valid (run %s, %d findings)\n", doc.RunID, len(doc.Findings()))

	default:
		log.Fatalf("Unsupported report type: %s (expected .md or .json)\n", filepath.Ext(*inputPath))
	}
}
