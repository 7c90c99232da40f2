// Package aggregate fetches posts, users and comments concurrently and joins
// them into PostResults.
//
// Aggregate is all-or-nothing: the first fetch error fails the whole call and
// no partial results are returned. Two execution strategies are offered. Both
// feed the same join and produce identical output for identical data:
//
//   - StrategyPool submits the fetches to a shared bounded worker pool and
//     returns as soon as one fails.
//   - StrategyGroup runs them in an errgroup, which cancels the siblings on
//     the first failure and waits for them to unwind.
package aggregate
