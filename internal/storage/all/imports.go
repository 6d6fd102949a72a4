// Package all registers every built-in storage backend with the storage
// package. Import it for side effects:
//
//	import _ "gridengine/internal/storage/all"
//
// after which storage.New accepts "sqlite", "postgres", "mssql" and "mysql"
// in addition to the built-in "memory" kind. Binaries that need only a subset
// can blank-import the individual backend packages instead.
package all

import (
	_ "gridengine/internal/storage/mssql"
	_ "gridengine/internal/storage/mysql"
	_ "gridengine/internal/storage/postgres"
	_ "gridengine/internal/storage/sqlite"
)
