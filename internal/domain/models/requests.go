package models

// Requests for the sessions HTTP endpoints. Defined in domain for consistency and reuse.

type SetSlotEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

type SetSlotTextRequest struct {
	Text string `json:"text" validate:"max=64"`
}

type SetWeightRequest struct {
	Weight float64 `json:"weight" validate:"gte=-1000,lte=1000"`
}

type RunBacktestRequest struct {
	Start          string  `json:"start" validate:"required"`
	End            string  `json:"end" validate:"required"`
	InitialCapital float64 `json:"initial_capital" default:"10000" validate:"gt=0"`
}

type ListRunsRequest struct {
	Limit int `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=200"`
}
