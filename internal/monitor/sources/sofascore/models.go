package sofascore

import "encoding/json"

// eventsResponse is the envelope of the tournament events endpoint. Events
// are kept raw so the original fragment can travel with the record for
// classification.
type eventsResponse struct {
	Events []json.RawMessage `json:"events"`
}

type apiEvent struct {
	ID        int64    `json:"id"`
	HomeTeam  apiTeam  `json:"homeTeam"`
	AwayTeam  apiTeam  `json:"awayTeam"`
	Status    apiState `json:"status"`
	HomeScore apiScore `json:"homeScore"`
	AwayScore apiScore `json:"awayScore"`
	Tournament struct {
		Name string `json:"name"`
	} `json:"tournament"`
	RoundInfo struct {
		Name string `json:"name"`
	} `json:"roundInfo"`
	StartTimestamp int64 `json:"startTimestamp"`
}

type apiTeam struct {
	Name string `json:"name"`
}

type apiState struct {
	Code        int    `json:"code"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type apiScore struct {
	Period1 int `json:"period1"`
	Period2 int `json:"period2"`
	Period3 int `json:"period3"`
}
