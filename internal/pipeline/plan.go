package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/AnyUserName/sizefit/internal/encoder"
	"github.com/AnyUserName/sizefit/internal/source"
)

// Job pairs a source with the output path it owns.
type Job struct {
	Source  source.Source
	OutPath string
}

// Plan assigns every source a distinct output path under outDir that
// mirrors its place in the input tree. Searches overwrite their output
// freely, so no two jobs may share one: when two sources would collide
// (a.png and a.gif both re-encoded to a.jpg) the source format is
// appended to the stem.
func (p *Pipeline) Plan(sources []source.Source, outDir string) ([]Job, error) {
	jobs := make([]Job, 0, len(sources))
	claimed := make(map[string]string, len(sources))

	for _, src := range sources {
		ext, err := p.outputExt(src)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src.RelPath, err)
		}
		dir := filepath.Dir(filepath.FromSlash(src.RelPath))
		stem := p.cfg.Prefix + filepath.Base(filepath.FromSlash(src.Key))

		out := filepath.Join(outDir, dir, stem+ext)
		if _, taken := claimed[strings.ToLower(out)]; taken {
			out = filepath.Join(outDir, dir, stem+"_"+src.Format+ext)
		}
		if other, taken := claimed[strings.ToLower(out)]; taken {
			return nil, fmt.Errorf("%s: output %s already planned for %s", src.RelPath, out, other)
		}
		claimed[strings.ToLower(out)] = src.RelPath
		jobs = append(jobs, Job{Source: src, OutPath: out})
	}
	return jobs, nil
}

// OutputPath returns the output path for a single source written next to
// dir (or next to the source when dir is empty).
func (p *Pipeline) OutputPath(src source.Source, dir string) (string, error) {
	if dir == "" {
		dir = filepath.Dir(src.AbsPath)
	}
	ext, err := p.outputExt(src)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, p.cfg.Prefix+filepath.Base(filepath.FromSlash(src.Key))+ext), nil
}

// outputExt keeps the source extension when the output format is the one
// the extension already names, and switches to the encoder's extension
// otherwise. A PNG saved as photo.jpg therefore comes out as .jpg only if
// it is actually re-encoded to JPEG.
func (p *Pipeline) outputExt(src source.Source) (string, error) {
	if p.copies(src) {
		return filepath.Ext(src.RelPath), nil
	}
	enc, err := p.outputEncoder(src)
	if err != nil {
		return "", err
	}
	if enc.Format() == src.ExtFormat() {
		return filepath.Ext(src.RelPath), nil
	}
	return "." + enc.Extension(), nil
}

// outputEncoder picks the encoder for src based on its content format.
func (p *Pipeline) outputEncoder(src source.Source) (encoder.Encoder, error) {
	if enc := p.repacker(src); enc != nil {
		return enc, nil
	}
	return p.registry.ForOutput(src.Format, p.cfg.Fallback)
}

func (p *Pipeline) copies(src source.Source) bool {
	return p.cfg.SkipUnderBudget && src.Size <= p.cfg.Target
}

// repacker returns the lossless encoder for src when KeepLossless applies:
// the source already fits and its own format has no quality knob. The
// original bytes are a fitting fallback, so the output always stays in
// the source format.
func (p *Pipeline) repacker(src source.Source) encoder.Encoder {
	if !p.cfg.KeepLossless || src.Size > p.cfg.Target {
		return nil
	}
	enc := p.registry.Get(src.Format)
	if enc == nil || enc.Capabilities().Lossy {
		return nil
	}
	return enc
}
