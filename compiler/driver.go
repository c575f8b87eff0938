package compiler

import (
	"os"
	"path/filepath"

	"github.com/gofrs/uuid"

	"github.com/thymoze/brainlift/ast"
	"github.com/thymoze/brainlift/backend"
	"github.com/thymoze/brainlift/errz"
)

// Compile lowers the program, hands the result to the target, and writes the
// object file at outputPath. The object is written to a uniquely named
// temporary file in the same directory and renamed into place, so a failed
// compile never leaves a partial or corrupt object behind.
func (c *Compiler) Compile(program *ast.Program, target backend.Target, outputPath string) error {
	fn, err := c.Lower(program)
	if err != nil {
		return err
	}

	obj, err := target.Object(fn)
	if err != nil {
		return errz.Newf(errz.ErrBackend, "object emission failed for target %s", target.Name()).WithCause(err)
	}

	tmpPath := outputPath + ".tmp." + uuid.Must(uuid.NewV4()).String()
	if err := os.WriteFile(tmpPath, obj, 0o644); err != nil {
		return errz.Newf(errz.ErrIO, "failed to write %s", tmpPath).WithCause(err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		_ = os.Remove(tmpPath)
		return errz.Newf(errz.ErrIO, "failed to move object into place at %s", outputPath).WithCause(err)
	}

	c.logger.Info().
		Str("target", target.Name()).
		Str("path", filepath.Clean(outputPath)).
		Int("bytes", len(obj)).
		Int("blocks", fn.NumBlocks()).
		Msg("wrote object file")
	return nil
}
