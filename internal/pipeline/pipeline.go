// Package pipeline wires a frame source to the image assembler.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"firestige.xyz/satrx/internal/assembler"
	"firestige.xyz/satrx/internal/core"
	"firestige.xyz/satrx/internal/log"
	"firestige.xyz/satrx/internal/metrics"
	"firestige.xyz/satrx/internal/receiver"
	"firestige.xyz/satrx/internal/sink"
	"firestige.xyz/satrx/internal/source"
)

const DefaultBufferSize = 1024

// Config contains pipeline configuration.
type Config struct {
	Source    source.Source
	Receiver  receiver.Receiver
	Sink      sink.Sink
	Assembler assembler.Config
	// BufferSize is the raw frame channel capacity between reader and assembler.
	BufferSize int
	Logger     log.Logger
}

// Pipeline runs one source into one assembler: a reader goroutine feeds a
// buffered channel drained by a single processing goroutine, so the receiver
// sees frames strictly in arrival order.
type Pipeline struct {
	src     source.Source
	asm     *assembler.Assembler
	metrics *Metrics
	logger  log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	frames chan core.RawChunk
	done   chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	readErr   error
	closeErr  error
}

// New creates a pipeline. It does not start reading.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Source == nil || cfg.Receiver == nil || cfg.Sink == nil {
		return nil, fmt.Errorf("%w: pipeline needs a source, a receiver and a sink", core.ErrConfigInvalid)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.GetLogger()
	}

	p := &Pipeline{
		src:     cfg.Source,
		metrics: &Metrics{},
		logger:  logger.WithField("source", cfg.Source.Name()),
		frames:  make(chan core.RawChunk, cfg.BufferSize),
		done:    make(chan struct{}),
	}

	acfg := cfg.Assembler
	onImage := acfg.OnImage
	acfg.OnImage = func(ev assembler.Event) {
		if ev.Partial {
			p.metrics.Abandoned.Add(1)
		}
		if onImage != nil {
			onImage(ev)
		}
	}
	if acfg.Logger == nil {
		acfg.Logger = logger
	}
	p.asm = assembler.New(cfg.Receiver, cfg.Sink, acfg)
	return p, nil
}

// Start launches the reader and processing goroutines.
func (p *Pipeline) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		p.ctx, p.cancel = context.WithCancel(ctx)
		p.logger.Info("pipeline starting")

		p.wg.Add(2)
		go p.readLoop()
		go p.processLoop()
		go func() {
			p.wg.Wait()
			p.finish()
			close(p.done)
		}()
	})
}

// Done is closed once the source is exhausted (or the pipeline stopped) and
// the open image has been finalized.
func (p *Pipeline) Done() <-chan struct{} { return p.done }

// Wait blocks until Done and returns the source error, if any. A source that
// ended because the pipeline was stopped is not an error.
func (p *Pipeline) Wait() error {
	<-p.done
	return errors.Join(p.readErr, p.closeErr)
}

// Stop cancels reading, drops frames still buffered and waits for shutdown.
// Stopping a pipeline that was never started is a no-op.
func (p *Pipeline) Stop() error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	return p.Wait()
}

// Run starts the pipeline and blocks until the source ends or ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.Start(ctx)
	return p.Wait()
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats {
	return p.metrics.snapshot()
}

// readLoop pulls frames from the source and closes the channel when it ends.
func (p *Pipeline) readLoop() {
	defer p.wg.Done()
	defer close(p.frames)

	if err := p.src.Read(p.ctx, p.frames); err != nil && p.ctx.Err() == nil {
		p.logger.WithError(err).Error("source failed")
		p.readErr = fmt.Errorf("source %s: %w", p.src.Name(), err)
	}
}

// processLoop feeds the assembler until the source is drained or the pipeline is stopped.
func (p *Pipeline) processLoop() {
	defer p.wg.Done()

	received := metrics.ChunksReceivedTotal.WithLabelValues(p.src.Name())
	for {
		select {
		case <-p.ctx.Done():
			return

		case raw, ok := <-p.frames:
			if !ok {
				return
			}
			received.Inc()
			p.metrics.Received.Add(1)
			p.process(raw)
		}
	}
}

func (p *Pipeline) process(raw core.RawChunk) {
	outcome, err := p.asm.Process(raw)
	switch outcome {
	case assembler.Dropped:
		p.metrics.Dropped.Add(1)
		if err != nil {
			// placement failed after a successful parse
			p.metrics.Parsed.Add(1)
			p.logger.WithError(err).Debug("chunk dropped")
		}
		return
	case assembler.Completed:
		p.metrics.Completed.Add(1)
	}
	p.metrics.Parsed.Add(1)
	p.metrics.Written.Add(1)
	if err != nil {
		p.logger.WithError(err).Warn("chunk processing reported an error")
	}
}

func (p *Pipeline) finish() {
	p.closeOnce.Do(func() {
		p.cancel()
		if err := p.asm.Close(); err != nil {
			p.closeErr = fmt.Errorf("close open image: %w", err)
		}
		st := p.Stats()
		p.logger.WithFields(map[string]interface{}{
			"received":  st.Received,
			"dropped":   st.Dropped,
			"completed": st.Completed,
			"abandoned": st.Abandoned,
		}).Info("pipeline stopped")
	})
}
