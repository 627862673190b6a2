package amadeus

import (
	"fmt"

	"github.com/dmoura/tripgraph/types"
)

// FlightEndpoint is a departure or arrival point of a segment.
type FlightEndpoint struct {
	IataCode string `json:"iataCode"`
	Terminal string `json:"terminal,omitempty"`
	At       string `json:"at"` // local date-time, ISO 8601
}

// Aircraft identifies the equipment operating a segment.
type Aircraft struct {
	Code string `json:"code"`
}

// OperatingFlight names the carrier actually operating a segment.
type OperatingFlight struct {
	CarrierCode string `json:"carrierCode"`
}

// Segment is one flown leg of an itinerary.
type Segment struct {
	Departure       FlightEndpoint   `json:"departure"`
	Arrival         FlightEndpoint   `json:"arrival"`
	CarrierCode     string           `json:"carrierCode"`
	Number          string           `json:"number"`
	Aircraft        Aircraft         `json:"aircraft"`
	Operating       *OperatingFlight `json:"operating,omitempty"`
	Duration        string           `json:"duration"`
	ID              string           `json:"id"`
	NumberOfStops   int              `json:"numberOfStops"`
	BlacklistedInEU bool             `json:"blacklistedInEU"`
}

// Itinerary is an ordered sequence of segments (outbound or return).
type Itinerary struct {
	Duration string    `json:"duration"`
	Segments []Segment `json:"segments"`
}

// Fee is one price component beyond the base fare.
type Fee struct {
	Amount string `json:"amount"`
	Type   string `json:"type"`
}

// Price is the offer price breakdown.
type Price struct {
	Currency   string `json:"currency"`
	Total      string `json:"total"`
	Base       string `json:"base"`
	Fees       []Fee  `json:"fees,omitempty"`
	GrandTotal string `json:"grandTotal,omitempty"`
}

// IncludedCheckedBags describes the checked-bag allowance of a fare.
type IncludedCheckedBags struct {
	Quantity int `json:"quantity"`
}

// FareDetailsBySegment carries the per-segment fare conditions.
type FareDetailsBySegment struct {
	SegmentID           string               `json:"segmentId"`
	Cabin               string               `json:"cabin"`
	FareBasis           string               `json:"fareBasis"`
	Class               string               `json:"class"`
	IncludedCheckedBags *IncludedCheckedBags `json:"includedCheckedBags,omitempty"`
}

// TravelerPricing is the per-traveler fare breakdown of an offer.
type TravelerPricing struct {
	TravelerID           string                 `json:"travelerId"`
	FareOption           string                 `json:"fareOption"`
	TravelerType         string                 `json:"travelerType"`
	Price                Price                  `json:"price"`
	FareDetailsBySegment []FareDetailsBySegment `json:"fareDetailsBySegment"`
}

// Offer is one bookable flight offer.
type Offer struct {
	Type                     string            `json:"type"`
	ID                       string            `json:"id"`
	Source                   string            `json:"source"`
	InstantTicketingRequired bool              `json:"instantTicketingRequired"`
	OneWay                   bool              `json:"oneWay"`
	LastTicketingDate        string            `json:"lastTicketingDate"`
	NumberOfBookableSeats    int               `json:"numberOfBookableSeats"`
	Itineraries              []Itinerary       `json:"itineraries"`
	Price                    Price             `json:"price"`
	ValidatingAirlineCodes   []string          `json:"validatingAirlineCodes"`
	TravelerPricings         []TravelerPricing `json:"travelerPricings"`
}

// Meta carries response-level metadata.
type Meta struct {
	Count int               `json:"count"`
	Links map[string]string `json:"links,omitempty"`
}

// OffersResponse is the flight-offers search response envelope.
type OffersResponse struct {
	Meta Meta    `json:"meta"`
	Data []Offer `json:"data"`
}

// Validate enforces the structural contract of a 2xx search response. An
// empty result list is an error, never an empty success.
func (r *OffersResponse) Validate() error {
	if len(r.Data) == 0 {
		return types.NewError(types.ErrSchema, "flight offers response has no data")
	}
	for i, offer := range r.Data {
		if offer.Price.Currency == "" || offer.Price.Total == "" {
			return types.NewError(types.ErrSchema,
				fmt.Sprintf("offer %d missing required price fields", i))
		}
		if len(offer.Itineraries) == 0 {
			return types.NewError(types.ErrSchema,
				fmt.Sprintf("offer %d has no itineraries", i))
		}
		for j, it := range offer.Itineraries {
			if len(it.Segments) == 0 {
				return types.NewError(types.ErrSchema,
					fmt.Sprintf("offer %d itinerary %d has no segments", i, j))
			}
		}
	}
	return nil
}

// Quartile labels used by the price-metrics endpoint.
const (
	QuartileMinimum = "MINIMUM"
	QuartileFirst   = "FIRST"
	QuartileMedium  = "MEDIUM"
	QuartileThird   = "THIRD"
	QuartileMaximum = "MAXIMUM"
)

// PriceMetric is one quartile of the observed price distribution.
type PriceMetric struct {
	Amount          string `json:"amount"`
	QuartileRanking string `json:"quartileRanking"`
}

// PriceMetricsEntry is one origin/destination/date analysis row.
type PriceMetricsEntry struct {
	Type          string `json:"type"`
	Origin        struct {
		IataCode string `json:"iataCode"`
	} `json:"origin"`
	Destination struct {
		IataCode string `json:"iataCode"`
	} `json:"destination"`
	DepartureDate string        `json:"departureDate"`
	OneWay        bool          `json:"oneWay"`
	CurrencyCode  string        `json:"currencyCode"`
	PriceMetrics  []PriceMetric `json:"priceMetrics"`
}

// MetricsResponse is the itinerary-price-metrics response envelope.
type MetricsResponse struct {
	Data []PriceMetricsEntry `json:"data"`
}

// Validate enforces the structural contract of a 2xx metrics response.
func (r *MetricsResponse) Validate() error {
	if len(r.Data) == 0 {
		return types.NewError(types.ErrSchema, "price metrics response has no data")
	}
	for i, entry := range r.Data {
		if len(entry.PriceMetrics) == 0 {
			return types.NewError(types.ErrSchema,
				fmt.Sprintf("price metrics entry %d has no quartiles", i))
		}
	}
	return nil
}
