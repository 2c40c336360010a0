package hack

import (
	_ "embed"
)

//go:embed battwatt.service
var SystemdUnitTemplate string
