package metered

import "github.com/xraph/metered/id"

// ID is the primary identifier type for all Metered entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
