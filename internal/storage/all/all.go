// Package all wires all built-in warehouse backends into the storage factory.
//
// Importing it for side effects runs each backend's init, which makes the
// following storage kinds available to storage.New:
//
//   - "postgres" (mastr/internal/storage/postgres)
//   - "mssql"    (mastr/internal/storage/mssql)
//   - "sqlite"   (mastr/internal/storage/sqlite)
package all

import (
	_ "mastr/internal/storage/mssql"
	_ "mastr/internal/storage/postgres"
	_ "mastr/internal/storage/sqlite"
)
