package pipeline

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/AnyUserName/sizefit/internal/artifact"
	"github.com/AnyUserName/sizefit/internal/encoder"
	"github.com/AnyUserName/sizefit/internal/hasher"
	"github.com/AnyUserName/sizefit/internal/manifest"
	"github.com/AnyUserName/sizefit/internal/search"
	"github.com/AnyUserName/sizefit/internal/source"
)

// CompressFile searches for the quality that fits src into the target
// and writes the result to outPath. Output.Path in the returned entry is
// outPath as given.
func (p *Pipeline) CompressFile(ctx context.Context, src source.Source, outPath string) (manifest.Entry, error) {
	log := p.log.With("file", src.RelPath)
	entry := manifest.Entry{
		Source: manifest.SourceInfo{
			Path:   src.RelPath,
			Format: src.Format,
			Size:   src.Size,
		},
	}

	if ext := src.ExtFormat(); ext != src.Format {
		log.Warn("extension does not match content, using content format",
			"extension", ext, "content", src.Format)
	}
	if p.copies(src) {
		return p.copyVerbatim(ctx, src, outPath, entry)
	}
	if enc := p.repacker(src); enc != nil {
		return p.repack(ctx, src, enc, outPath, entry)
	}

	decoded, err := source.Decode(src.AbsPath)
	if err != nil {
		return entry, fmt.Errorf("%s: %w", src.RelPath, err)
	}
	bounds := decoded.Bounds()
	entry.Source.Width = bounds.Dx()
	entry.Source.Height = bounds.Dy()
	entry.Source.HasAlpha = decoded.HasAlpha

	enc, err := p.outputEncoder(src)
	if err != nil {
		return entry, fmt.Errorf("%s: %w", src.RelPath, err)
	}

	var img image.Image = decoded.Image
	if decoded.HasAlpha && !enc.Capabilities().Alpha {
		log.Debug("flattening transparency", "format", enc.Format())
		img = source.Flatten(img, p.cfg.Background)
	}

	var (
		buf        *artifact.Buffer
		res        search.Result
		downscales int
		probes     int
	)
	for {
		buf = artifact.New(img, enc)
		res, err = search.Search(ctx, buf, p.cfg.Target, p.cfg.Params, search.WithLogger(log))
		if err != nil {
			return entry, fmt.Errorf("%s: %w", src.RelPath, err)
		}
		probes += res.Probes
		b := img.Bounds()
		if res.WithinBudget || downscales >= p.cfg.MaxDownscales || (b.Dx() <= 1 && b.Dy() <= 1) {
			break
		}
		downscales++
		img = source.Downscale(img)
		log.Info("budget unreachable at quality floor, downscaling",
			"size", res.Size, "target", p.cfg.Target,
			"width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	}

	if err := buf.Commit(ctx, outPath); err != nil {
		return entry, fmt.Errorf("%s: %w", src.RelPath, err)
	}

	if !res.WithinBudget {
		log.Warn("target not reachable, wrote smallest allowed encode",
			"size", res.Size, "target", p.cfg.Target, "quality", res.Quality)
	} else {
		log.Info("compressed", "quality", res.Quality, "size", res.Size,
			"target", p.cfg.Target, "encodes", probes, "in_band", res.InBand)
	}

	out := img.Bounds()
	entry.Output = manifest.OutputInfo{
		Path:         outPath,
		Format:       enc.Format(),
		Size:         buf.Len(),
		Hash:         hasher.ContentHash(buf.Bytes(), hasher.DefaultHexLen),
		Width:        out.Dx(),
		Height:       out.Dy(),
		Quality:      res.Quality,
		Probes:       probes,
		WithinBudget: res.WithinBudget,
		InBand:       res.InBand,
		Anomalies:    res.Anomalies,
		Downscales:   downscales,
	}
	return entry, nil
}

// repack rewrites src in its own lossless format and keeps whichever of
// the rewrite and the original bytes is smaller.
func (p *Pipeline) repack(ctx context.Context, src source.Source, enc encoder.Encoder, outPath string, entry manifest.Entry) (manifest.Entry, error) {
	decoded, err := source.Decode(src.AbsPath)
	if err != nil {
		return entry, fmt.Errorf("%s: %w", src.RelPath, err)
	}
	bounds := decoded.Bounds()
	entry.Source.Width = bounds.Dx()
	entry.Source.Height = bounds.Dy()
	entry.Source.HasAlpha = decoded.HasAlpha

	var img image.Image = decoded.Image
	if decoded.HasAlpha && !enc.Capabilities().Alpha {
		img = source.Flatten(img, p.cfg.Background)
	}
	buf := artifact.New(img, enc)
	if _, err := buf.EncodeAt(ctx, 0); err != nil {
		return entry, fmt.Errorf("%s: %w", src.RelPath, err)
	}
	if buf.Len() >= src.Size {
		p.log.Debug("lossless rewrite not smaller than source", "file", src.RelPath,
			"size", buf.Len(), "source_size", src.Size)
		entry, err = p.copyVerbatim(ctx, src, outPath, entry)
		entry.Output.Probes = buf.Encodes()
		entry.Output.Lossless = true
		return entry, err
	}
	if err := buf.Commit(ctx, outPath); err != nil {
		return entry, fmt.Errorf("%s: %w", src.RelPath, err)
	}
	p.log.Info("rewritten losslessly", "file", src.RelPath, "format", enc.Format(),
		"size", buf.Len(), "source_size", src.Size, "target", p.cfg.Target)

	size := buf.Len()
	entry.Output = manifest.OutputInfo{
		Path:         outPath,
		Format:       enc.Format(),
		Size:         size,
		Hash:         hasher.ContentHash(buf.Bytes(), hasher.DefaultHexLen),
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		Probes:       buf.Encodes(),
		WithinBudget: true,
		InBand:       size >= p.cfg.Target-p.cfg.Params.ToleranceBytes,
		Lossless:     true,
	}
	return entry, nil
}

func (p *Pipeline) copyVerbatim(ctx context.Context, src source.Source, outPath string, entry manifest.Entry) (manifest.Entry, error) {
	data, err := os.ReadFile(src.AbsPath)
	if err != nil {
		return entry, fmt.Errorf("%s: %w", src.RelPath, err)
	}
	if err := artifact.WriteFile(ctx, outPath, data); err != nil {
		return entry, fmt.Errorf("%s: %w", src.RelPath, err)
	}
	p.log.Info("already within budget, copied", "file", src.RelPath, "size", len(data), "target", p.cfg.Target)

	size := int64(len(data))
	entry.Output = manifest.OutputInfo{
		Path:         outPath,
		Format:       src.Format,
		Size:         size,
		Hash:         hasher.ContentHash(data, hasher.DefaultHexLen),
		WithinBudget: size <= p.cfg.Target,
		InBand:       size <= p.cfg.Target && size >= p.cfg.Target-p.cfg.Params.ToleranceBytes,
		Copied:       true,
	}
	return entry, nil
}
