// README: Results of a GEO radius lookup.
package location

import "routebite/internal/types"

type Hit struct {
	ID         types.ID
	DistanceKm float64
}
