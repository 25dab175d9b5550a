package commands

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"

	"panelcatalog/pipeline"
)

func TestPrintReport_DurationInMilliseconds(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	printReport(&pipeline.DiffReport{
		RunID:     "run-1",
		Mode:      pipeline.ModeDryRun,
		Catalogue: "unilin",
		Duration:  42,
	})

	out := buf.String()
	if !strings.Contains(out, "finished in 42ms") {
		t.Errorf("report header = %q, want the duration printed as milliseconds", out)
	}
	if strings.Contains(out, "%!s") {
		t.Errorf("report header carries a bad format verb: %q", out)
	}
}
