// Package attach folds file contents into the Prompt Buffer.
//
// Files are read one at a time in the order given, and each block is
// appended to the buffer's latest value once its read completes, so text the
// user types meanwhile is kept and blocks land in input order.
package attach

import (
	"context"
	"fmt"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/agentdesk/internal/log"
	"github.com/zjrosen/agentdesk/internal/prompt"
	"github.com/zjrosen/agentdesk/internal/tracing"
)

// File is the content of one attached file.
type File struct {
	Name    string
	Content string
	Path    string
}

// FileReader reads a file for attachment.
type FileReader interface {
	ReadFile(ctx context.Context, path string) (File, error)
}

// Failure records one file that could not be attached.
type Failure struct {
	Path string
	Err  error
}

// Result summarizes a batch.
type Result struct {
	Attached []File
	Failed   []Failure
}

// FormatBlock renders the delimited block appended for a file.
func FormatBlock(name, content string) string {
	return fmt.Sprintf("\n\n--- File: %s ---\n%s\n------\n", name, content)
}

// Pipeline attaches batches of files to a Buffer.
type Pipeline struct {
	reader FileReader
	buffer *prompt.Buffer
	tracer trace.Tracer
}

// NewPipeline creates a Pipeline. tracer may be nil.
func NewPipeline(reader FileReader, buffer *prompt.Buffer, tracer trace.Tracer) *Pipeline {
	if tracer == nil {
		tracer = tracing.Noop().Tracer()
	}
	return &Pipeline{reader: reader, buffer: buffer, tracer: tracer}
}

// Attach reads and appends each path in order. A path repeated within the
// batch is attached once. A failed read is logged and skipped; cancelling ctx
// stops the batch before the next file.
func (p *Pipeline) Attach(ctx context.Context, paths []string) Result {
	ctx, span := p.tracer.Start(ctx, tracing.SpanAttach,
		trace.WithAttributes(attribute.Int(tracing.AttrAttachFiles, len(paths))))
	defer span.End()

	var res Result
	seen := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		key := filepath.Clean(path)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if err := ctx.Err(); err != nil {
			res.Failed = append(res.Failed, Failure{Path: path, Err: err})
			continue
		}

		f, err := p.readOne(ctx, path)
		if err != nil {
			log.Warn(log.CatAttach, "Failed to read file", "path", path, "error", err)
			res.Failed = append(res.Failed, Failure{Path: path, Err: err})
			continue
		}

		p.buffer.Append(FormatBlock(f.Name, f.Content))
		res.Attached = append(res.Attached, f)
		log.Debug(log.CatAttach, "Attached file", "name", f.Name, "bytes", len(f.Content))
	}

	span.SetAttributes(attribute.Int(tracing.AttrAttachFailed, len(res.Failed)))
	return res
}

func (p *Pipeline) readOne(ctx context.Context, path string) (File, error) {
	ctx, span := p.tracer.Start(ctx, tracing.SpanAttachOne)
	defer span.End()

	f, err := p.reader.ReadFile(ctx, path)
	tracing.Fail(span, err)
	return f, err
}
