package gzgen

import (
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gzmsgs/gzprotoc/internal/logging"
)

// OutputDirectory is where generators write their artifacts. It is provided
// by the host running the generator; plugins.CodeGenResponse implements it.
type OutputDirectory interface {
	// Open creates a new output file.
	Open(name string) (io.WriteCloser, error)
	// OpenForInsert adds text to a file generated by another plugin, at the
	// named insertion point of that file.
	OpenForInsert(name, insertionPoint string) (io.WriteCloser, error)
}

// Artifact is one block of generated text and where it goes. Artifacts are
// write-once.
type Artifact struct {
	// File is the output file name.
	File string
	// InsertionPoint, when set, means Content is inserted into File at that
	// point instead of creating File.
	InsertionPoint string
	Content        string
}

// writeArtifacts writes each artifact in order. The first failure stops the
// writes; artifacts already written are not rolled back.
func writeArtifacts(out OutputDirectory, arts []Artifact, log *zap.Logger) error {
	for _, a := range arts {
		if err := writeArtifact(out, a); err != nil {
			return err
		}
		log.Debug("wrote artifact",
			zap.String(logging.FieldOutput, a.File),
			zap.String(logging.FieldInsertionPoint, a.InsertionPoint),
			zap.Int("bytes", len(a.Content)))
	}
	return nil
}

func writeArtifact(out OutputDirectory, a Artifact) (err error) {
	var w io.WriteCloser
	if a.InsertionPoint == "" {
		w, err = out.Open(a.File)
	} else {
		w, err = out.OpenForInsert(a.File, a.InsertionPoint)
	}
	if err != nil {
		if a.InsertionPoint == "" {
			return errors.Wrapf(err, "failed to open %s", a.File)
		}
		return errors.Wrapf(err, "failed to open %s at insertion point %s", a.File, a.InsertionPoint)
	}
	defer func() {
		if closeErr := w.Close(); closeErr != nil && err == nil {
			err = errors.Wrapf(closeErr, "failed to close %s", a.File)
		}
	}()
	if _, err := io.WriteString(w, a.Content); err != nil {
		return errors.Wrapf(err, "failed to write %s", a.File)
	}
	return nil
}
