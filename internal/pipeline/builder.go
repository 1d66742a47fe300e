package pipeline

import (
	"firestige.xyz/satrx/internal/assembler"
	"firestige.xyz/satrx/internal/log"
	"firestige.xyz/satrx/internal/receiver"
	"firestige.xyz/satrx/internal/sink"
	"firestige.xyz/satrx/internal/source"
)

// Builder provides a fluent interface for building pipelines.
type Builder struct {
	config Config
}

func NewBuilder() *Builder {
	return &Builder{config: Config{BufferSize: DefaultBufferSize}}
}

func (b *Builder) WithSource(s source.Source) *Builder {
	b.config.Source = s
	return b
}

func (b *Builder) WithReceiver(r receiver.Receiver) *Builder {
	b.config.Receiver = r
	return b
}

func (b *Builder) WithSink(s sink.Sink) *Builder {
	b.config.Sink = s
	return b
}

// WithAssembler sets image size limits, partial handling and the image callback.
func (b *Builder) WithAssembler(cfg assembler.Config) *Builder {
	b.config.Assembler = cfg
	return b
}

func (b *Builder) WithBufferSize(size int) *Builder {
	b.config.BufferSize = size
	return b
}

func (b *Builder) WithLogger(l log.Logger) *Builder {
	b.config.Logger = l
	return b
}

// Build creates the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	return New(b.config)
}
