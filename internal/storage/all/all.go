// Package all registers every relational backend with the storage factory.
package all

import (
	_ "h2scenarios/internal/storage/mssql"
	_ "h2scenarios/internal/storage/mysql"
	_ "h2scenarios/internal/storage/postgres"
	_ "h2scenarios/internal/storage/sqlite"
)
