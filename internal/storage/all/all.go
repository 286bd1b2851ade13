// Package all links every storage backend.
package all

import (
	_ "datenorm/internal/storage/mssql"
	_ "datenorm/internal/storage/postgres"
	_ "datenorm/internal/storage/sqlite"
)
