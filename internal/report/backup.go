package report

import (
	"fmt"
	"os"
	"time"
)

// BackupIfExists renames an existing output directory to
// "<dirName>_<YYYYMMDD_HHMMSS>" before a fresh run overwrites it, so a prior
// run's artifacts are never silently lost (spec.md §6, supplemented).
func BackupIfExists(outputDir string) error {
	if _, err := os.Stat(outputDir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("report: stat %s: %w", outputDir, err)
	}

	backup := outputDir + "_" + now().Format("20060102_150405")
	if err := os.Rename(outputDir, backup); err != nil {
		return fmt.Errorf("report: backing up %s to %s: %w", outputDir, backup, err)
	}
	return nil
}

// now is a seam for tests; production code always calls time.Now.
var now = time.Now

// PrepareOutputDir backs up any prior output directory, then recreates an
// empty one at outputDir.
func PrepareOutputDir(outputDir string) error {
	if err := BackupIfExists(outputDir); err != nil {
		return err
	}
	return os.MkdirAll(outputDir, 0o755)
}
