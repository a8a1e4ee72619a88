package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/synapse/internal/core/domain"
	"go.trai.ch/synapse/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.OutputWriter = (*Writer)(nil)

// Writer mirrors the source tree into the output directory.
type Writer struct{}

// NewWriter creates a new Writer.
func NewWriter() *Writer {
	return &Writer{}
}

func projectDir(cfg domain.CompilerConfig, dir string) string {
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(cfg.Root, dir)
}

// outputExt maps a source extension to its emitted extension.
func outputExt(source string) string {
	switch strings.ToLower(filepath.Ext(source)) {
	case ".mts", ".mjs":
		return ".mjs"
	case ".cts", ".cjs":
		return ".cjs"
	default:
		return ".js"
	}
}

// OutputPath returns output_dir/<source relative to source_dir> with a .js
// extension. Sources outside source_dir are placed relative to the project root.
func (w *Writer) OutputPath(source string, cfg domain.CompilerConfig) (string, error) {
	srcDir := projectDir(cfg, cfg.SourceDir)
	rel, err := filepath.Rel(srcDir, source)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel, err = filepath.Rel(cfg.Root, source)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", zerr.With(zerr.New("source is outside the project root"), "path", source)
		}
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + outputExt(source)
	return filepath.Join(projectDir(cfg, cfg.OutputDir), rel), nil
}

// Write stores the code of every successful file, followed by its source map
// when one was produced.
func (w *Writer) Write(ctx context.Context, result *domain.CompileResult, cfg domain.CompilerConfig) ([]string, error) {
	var written []string
	for i := range result.Files {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		f := &result.Files[i]
		if !f.Succeeded() {
			continue
		}
		out, err := w.OutputPath(f.Path, cfg)
		if err != nil {
			return written, zerr.Wrap(err, domain.ErrOutputWriteFailed.Error())
		}
		paths, err := w.writeFile(f, out)
		written = append(written, paths...)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (w *Writer) writeFile(f *domain.FileResult, out string) ([]string, error) {
	code := f.Code
	if f.Map == nil {
		if err := WriteFileAtomic(out, code); err != nil {
			return nil, err
		}
		return []string{out}, nil
	}

	mapPath := out + domain.SourceMapExt
	source, err := filepath.Rel(filepath.Dir(out), f.Path)
	if err != nil {
		source = f.Path
	}
	m := f.Map.Attach(filepath.Base(out), filepath.ToSlash(source), nil)
	data, err := m.Encode()
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "path", mapPath)
	}

	withTrailer := make([]byte, 0, len(code)+64)
	withTrailer = append(withTrailer, code...)
	if len(withTrailer) > 0 && withTrailer[len(withTrailer)-1] != '\n' {
		withTrailer = append(withTrailer, '\n')
	}
	withTrailer = append(withTrailer, "//# sourceMappingURL="+filepath.Base(mapPath)+"\n"...)

	if err := WriteFileAtomic(out, withTrailer); err != nil {
		return nil, err
	}
	if err := WriteFileAtomic(mapPath, data); err != nil {
		return []string{out}, err
	}
	return []string{out, mapPath}, nil
}

// WriteFileAtomic writes data to a temporary file in the target directory,
// syncs it and renames it over path, so readers never see a partial file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "path", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "path", path)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "path", path)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "path", path)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "path", path)
	}
	if err := os.Chmod(tmpName, domain.FilePerm); err != nil {
		cleanup()
		return zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "path", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "path", path)
	}
	return nil
}
