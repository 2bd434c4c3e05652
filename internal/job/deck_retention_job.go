package job

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// DeckRetentionJob deletes generated presentations older than the
// retention window. Decks are derived artifacts; anything cited can be
// regenerated from the corpus.
type DeckRetentionJob struct {
	outputDir string
	keepDays  int
}

func NewDeckRetentionJob(outputDir string, keepDays int) *DeckRetentionJob {
	return &DeckRetentionJob{outputDir: outputDir, keepDays: keepDays}
}

func (j *DeckRetentionJob) Name() string {
	return "deck_retention"
}

func (j *DeckRetentionJob) Run(ctx context.Context) error {
	keepDays := j.keepDays
	if keepDays <= 0 {
		keepDays = 30
	}
	cutoff := time.Now().Add(-time.Duration(keepDays) * 24 * time.Hour)

	entries, err := os.ReadDir(j.outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, "presentation_") || !strings.HasSuffix(name, ".pdf") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(j.outputDir, name)); err != nil {
			logutil.GetLogger(ctx).Warn("failed to remove expired deck",
				zap.String("file", name), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		logutil.GetLogger(ctx).Info("expired decks removed", zap.Int("count", removed))
	}
	return nil
}
