/*
Package batch implements the hand-off of records between the stages of one
pipeline execution.

A PipelineBatch holds the in-flight records of a batch, grouped by lane. For
every stage, the runtime binds the stage's Pipe to the PipelineBatch with a
PipeBatch and drives it through a fixed sequence:

	pb := batch.New(p, plb)
	pb.ExtractFromPipelineBatch() // drain (transform) or peek (observer)
	stage.Process(ctx, pb, pb)    // read through Batch, write through BatchMaker
	pb.FlushBackToPipelineBatch() // append per-lane output to the PipelineBatch

A transform takes exclusive ownership of the records on its input lanes when it
extracts them; an observer only looks at them, so they remain for the next
transform. Records handed to a stage are always record.Snapshot copies stamped
with the reading stage's instance name.

Misuse of the write contract (emitting from an observer, naming an undeclared
lane, omitting the lane on a multi-lane transform, driving the sequence out of
order) is reported synchronously as a *ProtocolError.

Neither type is safe for concurrent use. One batch moves through its stages on
a single goroutine.
*/
package batch
