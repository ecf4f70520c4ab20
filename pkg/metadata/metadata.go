// Package metadata provides utilities for signing and verifying exported report documents.
package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// TagStart is the start of the metadata block.
	TagStart = "<!-- REPORT_METADATA_START"
	// TagEnd is the end of the metadata block.
	TagEnd = "REPORT_METADATA_END -->"
)

// Metadata verification errors.
var (
	ErrNoMetadataBlock = errors.New("no metadata block found")
	ErrNoHashFound     = errors.New("no hash found in metadata")
	ErrHashMismatch    = errors.New("hash mismatch")
	ErrNoRunID         = errors.New("no run id in metadata")
	ErrRunMismatch     = errors.New("run id mismatch")
)

// Metadata contains the provenance of an exported report.
type Metadata struct {
	GeneratedAt time.Time
	RunID       string
	Hash        string
}

// metadataRegex matches the entire metadata block including tags.
var metadataRegex = regexp.MustCompile(`(?s)<!--\s*REPORT_METADATA_START\s*\n(.*?)\n\s*REPORT_METADATA_END\s*-->`)

// Extract removes the metadata block from content and returns both the metadata and the cleaned content.
// The cleaned content is what gets hashed.
func Extract(content string) (*Metadata, string) {
	match := metadataRegex.FindStringSubmatch(content)
	cleanContent := metadataRegex.ReplaceAllString(content, "")
	cleanContent = strings.TrimRight(cleanContent, "\n")

	if len(match) < 2 {
		return nil, cleanContent
	}

	meta := &Metadata{}

	for line := range strings.SplitSeq(match[1], "\n") {
		parts := strings.SplitN(strings.TrimSpace(line), ":", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])

		switch key {
		case "RUN_ID":
			meta.RunID = val
		case "GENERATED_AT":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				meta.GeneratedAt = t
			}
		case "HASH":
			meta.Hash = val
		}
	}

	return meta, cleanContent
}

// CalculateHash computes the SHA-256 hash of the content (excluding metadata).
func CalculateHash(content string) string {
	_, clean := Extract(content)
	hash := sha256.Sum256([]byte(clean))

	return hex.EncodeToString(hash[:])
}

// Sign appends or replaces the metadata block with a fresh hash.
func Sign(content, runID string, generatedAt time.Time) string {
	_, clean := Extract(content)

	hash := CalculateHash(clean)

	newBlock := fmt.Sprintf("\n\n%s\nRUN_ID: %s\nGENERATED_AT: %s\nHASH: %s\n%s",
		TagStart, runID, generatedAt.UTC().Format(time.RFC3339), hash, TagEnd)

	return clean + newBlock
}

// Verify checks if the content matches the hash in its metadata.
func Verify(content string) (bool, error) {
	meta, clean := Extract(content)
	if meta == nil {
		return false, ErrNoMetadataBlock
	}

	if meta.Hash == "" {
		return false, ErrNoHashFound
	}

	calculated := CalculateHash(clean)
	if calculated != meta.Hash {
		return false, fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, meta.Hash, calculated)
	}

	return true, nil
}

// VerifyRun checks the hash like Verify and that the block was signed for
// runID. The RUN_ID line sits outside the hashed content, so callers pass the
// run the signed body itself names.
func VerifyRun(content, runID string) (*Metadata, error) {
	if _, err := Verify(content); err != nil {
		return nil, err
	}

	meta, _ := Extract(content)
	if meta.RunID == "" {
		return meta, ErrNoRunID
	}

	if meta.RunID != runID {
		return meta, fmt.Errorf("%w: block names %s, document names %s", ErrRunMismatch, meta.RunID, runID)
	}

	return meta, nil
}
