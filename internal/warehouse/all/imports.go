// Package all registers every built-in warehouse backend. Import it for its
// side effects:
//
//	import _ "imisexport/internal/warehouse/all"
//
// after which warehouse.New accepts kinds "postgres", "mssql", "mysql" and
// "sqlite".
package all

import (
	_ "imisexport/internal/warehouse/mssql"
	_ "imisexport/internal/warehouse/mysql"
	_ "imisexport/internal/warehouse/postgres"
	_ "imisexport/internal/warehouse/sqlite"
)
