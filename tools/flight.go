package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmoura/tripgraph/amadeus"
	"github.com/dmoura/tripgraph/types"
)

// Flight tool names as exposed to the model.
const (
	ToolSearchFlights = "search_flights"
	ToolPriceMetrics  = "flight_price_metrics"
)

// searchFlightsArgs are the model-facing arguments for search_flights.
type searchFlightsArgs struct {
	Origin           string   `json:"origin"`
	Destination      string   `json:"destination"`
	DepartureDate    string   `json:"departure_date"`
	ReturnDate       string   `json:"return_date,omitempty"`
	Adults           int      `json:"adults,omitempty"`
	Children         int      `json:"children,omitempty"`
	Infants          int      `json:"infants,omitempty"`
	TravelClass      string   `json:"travel_class,omitempty"`
	MaxPrice         int      `json:"max_price,omitempty"`
	NonStop          *bool    `json:"non_stop,omitempty"`
	IncludedAirlines []string `json:"included_airlines,omitempty"`
	ExcludedAirlines []string `json:"excluded_airlines,omitempty"`
	Currency         string   `json:"currency,omitempty"`
	MaxResults       int      `json:"max_results,omitempty"`
}

type priceMetricsArgs struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
	Currency      string `json:"currency,omitempty"`
	OneWay        bool   `json:"one_way,omitempty"`
}

const searchFlightsSchema = `{
	"type": "object",
	"properties": {
		"origin": {"type": "string", "description": "IATA code of the departure airport, e.g. VIX"},
		"destination": {"type": "string", "description": "IATA code of the arrival airport, e.g. GRU"},
		"departure_date": {"type": "string", "description": "Departure date in YYYY-MM-DD"},
		"return_date": {"type": "string", "description": "Return date in YYYY-MM-DD for round trips"},
		"adults": {"type": "integer", "minimum": 1, "description": "Number of adult travelers, default 1"},
		"children": {"type": "integer", "minimum": 0},
		"infants": {"type": "integer", "minimum": 0},
		"travel_class": {"type": "string", "enum": ["ECONOMY", "PREMIUM_ECONOMY", "BUSINESS", "FIRST"]},
		"max_price": {"type": "integer", "description": "Maximum price per traveler"},
		"non_stop": {"type": "boolean", "description": "Only direct flights when true"},
		"included_airlines": {"type": "array", "items": {"type": "string"}, "description": "IATA carrier codes to restrict results to"},
		"excluded_airlines": {"type": "array", "items": {"type": "string"}, "description": "IATA carrier codes to exclude; ignored when included_airlines is set"},
		"currency": {"type": "string", "description": "ISO currency code for prices"},
		"max_results": {"type": "integer", "minimum": 1, "maximum": 250}
	},
	"required": ["origin", "destination", "departure_date"]
}`

const priceMetricsSchema = `{
	"type": "object",
	"properties": {
		"origin": {"type": "string", "description": "IATA code of the departure airport"},
		"destination": {"type": "string", "description": "IATA code of the arrival airport"},
		"departure_date": {"type": "string", "description": "Departure date in YYYY-MM-DD"},
		"currency": {"type": "string", "description": "ISO currency code, default EUR"},
		"one_way": {"type": "boolean"}
	},
	"required": ["origin", "destination", "departure_date"]
}`

// RegisterFlightTools wires the flight-search tools over the Amadeus
// client into a registry.
func RegisterFlightTools(reg *Registry, client *amadeus.Client) error {
	err := reg.Register(ToolSearchFlights, searchFlightsFunc(client), Metadata{
		Schema: types.ToolSchema{
			Name:        ToolSearchFlights,
			Description: "Search available flight offers between two airports on given dates.",
			Parameters:  json.RawMessage(searchFlightsSchema),
		},
		Timeout: 45 * time.Second,
	})
	if err != nil {
		return err
	}
	return reg.Register(ToolPriceMetrics, priceMetricsFunc(client), Metadata{
		Schema: types.ToolSchema{
			Name:        ToolPriceMetrics,
			Description: "Get historical price quartiles for an itinerary to judge whether an offer is cheap or expensive.",
			Parameters:  json.RawMessage(priceMetricsSchema),
		},
		Timeout: 30 * time.Second,
	})
}

func searchFlightsFunc(client *amadeus.Client) Func {
	return func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var args searchFlightsArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, types.NewError(types.ErrInvalidRequest, "parse search_flights arguments").WithCause(err)
		}

		resp, err := client.SearchOffers(ctx, amadeus.SearchRequest{
			Origin:           args.Origin,
			Destination:      args.Destination,
			DepartureDate:    args.DepartureDate,
			ReturnDate:       args.ReturnDate,
			Adults:           args.Adults,
			Children:         args.Children,
			Infants:          args.Infants,
			TravelClass:      args.TravelClass,
			MaxPrice:         args.MaxPrice,
			NonStop:          args.NonStop,
			IncludedAirlines: args.IncludedAirlines,
			ExcludedAirlines: args.ExcludedAirlines,
			Currency:         args.Currency,
			MaxResults:       args.MaxResults,
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	}
}

func priceMetricsFunc(client *amadeus.Client) Func {
	return func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var args priceMetricsArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, types.NewError(types.ErrInvalidRequest, "parse flight_price_metrics arguments").WithCause(err)
		}

		resp, err := client.PriceMetrics(ctx, amadeus.MetricsRequest{
			Origin:        args.Origin,
			Destination:   args.Destination,
			DepartureDate: args.DepartureDate,
			Currency:      args.Currency,
			OneWay:        args.OneWay,
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	}
}
