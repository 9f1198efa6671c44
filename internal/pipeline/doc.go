// Package pipeline runs an on-demand backlink scan as a sequence of steps.
//
// A ScanJob flows through validation, plan authorization, quota reservation,
// crawling, persistence and history recording. Each stage is a Step that
// reads and fills in the job.
//
// Design decision: steps that acquire something the caller must give back,
// like a reserved unit of quota, register a cleanup on the job. The pipeline
// runs those cleanups in reverse order when a later step fails, so quota is
// only spent on scans that were stored.
//
// The package also provides BatchProcessor, which runs independent items
// (targets to reindex, users to report on) with bounded concurrency and
// keeps going when one item fails.
package pipeline
