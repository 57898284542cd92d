// Package pipeline drives documents from a source through a shredding
// builder into a sink, one record batch at a time.
//
// # Overview
//
// A Pipeline reads BSON documents from a source.Source, appends each one to
// a shred.RecordStructBuilder and hands every full batch to a sink.Sink:
//
//	p := pipeline.New(src, dst, fields, &pipeline.Config{
//		BatchSize: 10000,
//		Mode:      pipeline.ModeProject,
//	}, logger)
//
//	stats, err := p.Run(ctx)
//
// # Rejected Documents
//
// A document that fails to shred adds no row. It is counted in
// Stats.Rejected and logged at warn level, and the run continues unless
// Config.FailFast is set or Config.MaxRejected is exceeded. Framing errors
// from the source always stop the run since the stream cannot be
// resynchronised.
//
// # Batching
//
// A batch is flushed when it reaches Config.BatchSize rows and once more at
// the end of input if it holds any rows. Each flush runs inside a
// "shred.flush" span. Cancelling the context drops the partial batch.
//
// The pipeline never closes its source or sink; the caller owns both.
package pipeline
