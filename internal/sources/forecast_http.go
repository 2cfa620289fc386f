package sources

import (
	"context"

	"github.com/go-playground/validator/v10"

	"stazione/internal/external"
	"stazione/internal/types"
)

// forecastDocument is the provider's response body.
type forecastDocument struct {
	Probability *int `json:"probability" validate:"required,min=0,max=100"`
}

// HTTPForecast fetches the chance of rain from an HTTP endpoint returning
// {"probability": n}.
type HTTPForecast struct {
	client   *external.BaseClient
	url      string
	validate *validator.Validate
}

// NewHTTPForecast creates an HTTPForecast that queries url through client.
func NewHTTPForecast(client *external.BaseClient, url string, val *validator.Validate) *HTTPForecast {
	if val == nil {
		val = validator.New()
	}
	return &HTTPForecast{client: client, url: url, validate: val}
}

// ForecastProbability returns the provider's percentage. Malformed or out of
// range documents are reported as ErrCodeUpstreamForecast.
func (f *HTTPForecast) ForecastProbability(ctx context.Context) (int, error) {
	var doc forecastDocument
	if err := f.client.GetJSON(ctx, f.url, &doc); err != nil {
		return 0, err
	}
	if err := f.validate.Struct(doc); err != nil {
		return 0, types.NewAppError(types.ErrCodeUpstreamForecast, "forecast provider returned an invalid probability", err)
	}
	return *doc.Probability, nil
}
