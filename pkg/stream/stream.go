// SPDX-License-Identifier: MPL-2.0

// Package stream provides a push-based pipeline of file transforms.
//
// A Pipeline is built from ordered Transform stages. Each file written to the
// pipeline runs through every stage before Write returns; End flushes the
// stages in order so buffering stages (such as Concat) can emit their result.
// Pipelines are single-goroutine and not safe for concurrent use.
package stream

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/invowk/tplcache/pkg/vfile"
)

var (
	// ErrEnded is returned when writing to, or ending, a pipeline that has
	// already ended.
	ErrEnded = errors.New("stream: pipeline already ended")
	// ErrNilFile is returned when a nil file is written to a pipeline.
	ErrNilFile = errors.New("stream: nil file")
)

type (
	// Emit hands a file to the next stage.
	Emit func(ctx context.Context, f *vfile.File) error

	// Transform is one stage of a Pipeline.
	Transform interface {
		// Transform processes one file and may emit zero or more files.
		Transform(ctx context.Context, f *vfile.File, emit Emit) error
		// Flush is called once after the last file and may emit remaining files.
		Flush(ctx context.Context, emit Emit) error
	}

	// TransformFunc adapts a per-file function to a Transform with a no-op Flush.
	TransformFunc func(ctx context.Context, f *vfile.File, emit Emit) error

	// Pipeline runs files through a fixed sequence of stages into a sink.
	Pipeline struct {
		stages []Transform
		emits  []Emit // emits[i] feeds stages[i]; the last entry is the sink
		err    error
		ended  bool
	}

	passthrough struct{}
)

// Transform calls fn.
func (fn TransformFunc) Transform(ctx context.Context, f *vfile.File, emit Emit) error {
	return fn(ctx, f, emit)
}

// Flush does nothing.
func (fn TransformFunc) Flush(context.Context, Emit) error { return nil }

// Passthrough returns a stage that emits every file unchanged.
func Passthrough() Transform { return passthrough{} }

func (passthrough) Transform(ctx context.Context, f *vfile.File, emit Emit) error {
	return emit(ctx, f)
}

func (passthrough) Flush(context.Context, Emit) error { return nil }

// Compose builds a Pipeline that runs stages in order and hands whatever the
// last stage emits to sink. A nil sink discards output.
func Compose(sink Emit, stages ...Transform) *Pipeline {
	if sink == nil {
		sink = func(context.Context, *vfile.File) error { return nil }
	}
	emits := make([]Emit, len(stages)+1)
	emits[len(stages)] = sink
	for i := len(stages) - 1; i >= 0; i-- {
		stage, next := stages[i], emits[i+1]
		emits[i] = func(ctx context.Context, f *vfile.File) error {
			return stage.Transform(ctx, f, next)
		}
	}
	return &Pipeline{stages: stages, emits: emits}
}

// Write pushes f through every stage. After the first error the pipeline is
// failed and every later Write or End returns that error.
func (p *Pipeline) Write(ctx context.Context, f *vfile.File) error {
	if p.err != nil {
		return p.err
	}
	if p.ended {
		return ErrEnded
	}
	if f == nil {
		return p.fail(ErrNilFile)
	}
	if err := ctx.Err(); err != nil {
		return p.fail(fmt.Errorf("stream: write canceled: %w", err))
	}
	return p.fail(p.emits[0](ctx, f))
}

// End signals end of input and flushes every stage in order. A failed
// pipeline does not flush, so buffering stages never emit partial output.
func (p *Pipeline) End(ctx context.Context) error {
	if p.err != nil {
		return p.err
	}
	if p.ended {
		return ErrEnded
	}
	p.ended = true
	if err := ctx.Err(); err != nil {
		return p.fail(fmt.Errorf("stream: end canceled: %w", err))
	}
	for i, stage := range p.stages {
		if err := stage.Flush(ctx, p.emits[i+1]); err != nil {
			return p.fail(err)
		}
	}
	return nil
}

// Run writes every file of files and then ends the pipeline.
func (p *Pipeline) Run(ctx context.Context, files iter.Seq[*vfile.File]) error {
	for f := range files {
		if err := p.Write(ctx, f); err != nil {
			return err
		}
	}
	return p.End(ctx)
}

// Err returns the error that failed the pipeline, if any.
func (p *Pipeline) Err() error { return p.err }

func (p *Pipeline) fail(err error) error {
	if err != nil && p.err == nil {
		p.err = err
	}
	return err
}
