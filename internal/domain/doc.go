// Package domain holds the identity types and telemetry payloads shared by
// the storage layer and the ingestion boundary.
//
// Every identifier is a distinct named type so that a match identifier can
// never be passed where a player identifier is expected; conversions to and
// from primitives are always explicit.
package domain
