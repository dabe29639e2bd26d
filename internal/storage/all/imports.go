// Package all wires all built-in storage backends into the storage factory.
//
// It exists purely for side effects: importing it (even as a blank import)
// runs the init functions of each backend, which register their factories
// with the storage package. The kinds made available are:
//
//   - "sqlite"   (breachpw/internal/storage/sqlite)
//   - "postgres" (breachpw/internal/storage/postgres)
//   - "mysql"    (breachpw/internal/storage/mysql)
//   - "mssql"    (breachpw/internal/storage/mssql)
//
// A binary that needs only a subset can import the backends it wants
// directly instead.
package all

import (
	_ "breachpw/internal/storage/mssql"
	_ "breachpw/internal/storage/mysql"
	_ "breachpw/internal/storage/postgres"
	_ "breachpw/internal/storage/sqlite"
)
