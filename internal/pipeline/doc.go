// Package pipeline compiles model descriptors and read requests into
// aggregation pipelines.
//
// The compiler has four parts:
//
//   - Predicate maps a query.Filter onto stored field names and comparison
//     operators, coercing identifier strings to their native form.
//   - The relationship resolver walks visible columns, emitting $lookup and
//     $unwind stages for relations and building the projection.
//   - The level compiler folds every array that was unwound during
//     resolution back into its original shape with $group/$project pairs.
//   - Pipeline assembles the stages in their fixed order and appends sort
//     and pagination.
//
// Compilation is pure: the same descriptor and request always produce the
// same stages, and a failure never yields a partial pipeline.
package pipeline
