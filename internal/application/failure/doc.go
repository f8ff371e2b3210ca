// Package failure classifies import failures into a typed taxonomy, keeps a
// registry of processed errors per job and retries operations with
// per-type exponential backoff.
//
// Classification prefers a kind attached at the source (WithType, or any error
// exposing ErrorType). Untyped errors fall back to an ordered keyword policy
// where the first matching rule wins.
package failure
