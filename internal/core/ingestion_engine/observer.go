package ingestion_engine

import "github.com/markdave123-py/docembed/internal/models"

// Observer receives progress notifications. They are advisory and must not
// block for long. File and run calls come from the single consumer goroutine;
// ChunkEmbedded is called from the embedding workers and may run concurrently.
type Observer interface {
	// FileExtracted is called once per discovered file, successful or not.
	FileExtracted(res models.ExtractionResult)
	// ChunkEmbedded is called once per chunk when its embedding call returns.
	// err is non-nil when the chunk will be left out of the file's batch.
	ChunkEmbedded(file models.SourceFile, index int, err error)
	// FileStored is called after a file's batch was handled. stored is the number
	// of rows written; err is non-nil when chunking, embedding or persisting failed.
	FileStored(file models.SourceFile, chunks, stored int, err error)
	RunFinished(report *Report)
}

// NopObserver discards every notification.
type NopObserver struct{}

func (NopObserver) FileExtracted(models.ExtractionResult)         {}
func (NopObserver) ChunkEmbedded(models.SourceFile, int, error)   {}
func (NopObserver) FileStored(models.SourceFile, int, int, error) {}
func (NopObserver) RunFinished(*Report)                           {}
