package events

import (
	"fmt"

	"github.com/google/uuid"
)

// eventIDNamespace is the fixed namespace for derived event ids. Changing it
// invalidates every ledger entry written so far, so treat it as frozen.
var eventIDNamespace = uuid.MustParse("6e5fcd21-1f3a-4e27-9c58-7b2d9a0e4f10")

// DeriveEventID derives a stable event id for a broker message that carries no
// identifier of its own. The id is a name-based UUID over the message's
// physical coordinates plus the saga's correlation id, so redelivering the
// identical message always yields the identical id.
//
// The guarantee only holds for that physical coordinate: the same logical
// event re-published to a different partition or offset gets a different id
// and will be reprocessed.
func DeriveEventID(topic string, partition int, offset int64, correlationID uuid.UUID) uuid.UUID {
	name := fmt.Sprintf("%s-%d-%d-%s", topic, partition, offset, correlationID)
	return uuid.NewSHA1(eventIDNamespace, []byte(name))
}
