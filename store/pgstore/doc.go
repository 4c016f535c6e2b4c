// Package pgstore implements the refresh-token store on Postgres.
//
// Rotation is a conditional UPDATE with RETURNING, so the Active check
// and the status flip are one atomic statement. Schema management uses
// embedded goose migrations; call Migrate once at startup.
package pgstore
