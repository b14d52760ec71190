package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDestinationMatchesTag(t *testing.T) {
	d := Destination{Name: "Sakura School", Address: "Kyoto", RouteTag: "A"}

	assert.True(t, d.MatchesTag(""))
	assert.True(t, d.MatchesTag(AllRouteTags))
	assert.True(t, d.MatchesTag("A"))
	assert.False(t, d.MatchesTag("B①"))
}

func TestDestinationWithoutTagOnlyMatchesAll(t *testing.T) {
	d := Destination{Name: "Depot Annex", Address: "Osaka"}

	assert.True(t, d.MatchesTag(""))
	assert.False(t, d.MatchesTag("A"))
}

func TestRouteNamesAndPath(t *testing.T) {
	r := Route{
		Stops: []RouteStop{
			{Order: 0, Name: "depot", Coords: Coordinates{Lat: 35.0, Lng: 135.0}, IsDepot: true},
			{Order: 1, Name: "A", Coords: Coordinates{Lat: 35.1, Lng: 135.1}},
			{Order: 2, Name: "B", Coords: Coordinates{Lat: 35.2, Lng: 135.2}},
		},
	}

	assert.Equal(t, []string{"depot", "A", "B"}, r.Names())
	assert.Equal(t, Coordinates{Lat: 35.2, Lng: 135.2}, r.Path()[2])
	assert.Equal(t, 1, r.IntermediateStops())
}

func TestRouteIntermediateStopsDegenerate(t *testing.T) {
	assert.Equal(t, 0, (&Route{}).IntermediateStops())
	assert.Equal(t, 0, (&Route{Stops: []RouteStop{{Name: "depot"}}}).IntermediateStops())
	assert.Equal(t, 0, (&Route{Stops: []RouteStop{{Name: "depot"}, {Name: "A"}}}).IntermediateStops())
}
