package tariffmarket

import "github.com/xraph/tariffmarket/id"

// ID is the identifier type shared by every market entity.
type ID = id.ID

// Prefix names the entity type encoded in an ID.
type Prefix = id.Prefix
