package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/markdave123-py/docembed/internal/core/ingestion_engine"
	"github.com/markdave123-py/docembed/internal/models"
)

// Console prints one line per file and a summary at the end of a run. A chunk
// whose embedding fails gets its own line as soon as it is known.
type Console struct {
	mu       sync.Mutex
	out      io.Writer
	files    int
	embedded int

	ok   func(a ...interface{}) string
	fail func(a ...interface{}) string
	dim  func(a ...interface{}) string
	bold func(a ...interface{}) string
}

var _ ingestion_engine.Observer = (*Console)(nil)

// NewConsole writes to out, or stderr when out is nil.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stderr
	}
	return &Console{
		out:  out,
		ok:   color.New(color.FgGreen, color.Bold).SprintFunc(),
		fail: color.New(color.FgRed, color.Bold).SprintFunc(),
		dim:  color.New(color.FgHiBlack).SprintFunc(),
		bold: color.New(color.FgCyan, color.Bold).SprintFunc(),
	}
}

func (c *Console) FileExtracted(res models.ExtractionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files++
}

func (c *Console) ChunkEmbedded(file models.SourceFile, index int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		fmt.Fprintf(c.out, "  %s %s#%d %s\n", c.fail("!"), file.Path, index, c.dim(err.Error()))
		return
	}
	c.embedded++
}

func (c *Console) FileStored(file models.SourceFile, chunks, stored int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		fmt.Fprintf(c.out, "%s [%d] %s %s\n", c.fail("✗"), c.files, file.Path, c.dim(err.Error()))
		return
	}
	fmt.Fprintf(c.out, "%s [%d] %s %s\n", c.ok("✓"), c.files, file.Path,
		c.dim(fmt.Sprintf("%d/%d chunks", stored, chunks)))
}

func (c *Console) RunFinished(r *ingestion_engine.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "\n%s %d/%d files, %d/%d chunks stored (%d embedded) in %s\n",
		c.bold("Ingestion complete:"), r.FilesIngested, r.FilesSeen, r.ChunksStored, r.ChunksTotal,
		c.embedded, r.Duration.Round(time.Millisecond))
	if len(r.Failures) == 0 {
		return
	}
	fmt.Fprintf(c.out, "%s\n", c.fail(fmt.Sprintf("%d failure(s):", len(r.Failures))))
	for _, f := range r.Failures {
		fmt.Fprintf(c.out, "  %s %s: %s\n", c.dim(f.Stage), f.Path, f.Message)
	}
}
