// Package core implements the lock diagnostic engine: it fans out collection
// against a live database, folds the results through the contention,
// wait-chain and health analyzers, runs the advisory strategies and assembles
// the final analysis behind the cost-bounding cache.
package core
