// Package postgres implements the authcore user store contract on
// PostgreSQL. It maps row absence and unique-constraint violations onto
// the authcore sentinels so the engine's resolution and duplicate
// handling work unchanged against this backend.
package postgres
