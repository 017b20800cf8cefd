package leadform

import "strings"

// Fields holds the values currently entered in the form.
type Fields struct {
	Name    string
	Email   string
	Company string
	Sector  string
	Volume  Volume
	Message string
}

// Request is the body sent to the lead-intake endpoint.
type Request struct {
	Name               string `json:"name"`
	Email              string `json:"email"`
	Company            string `json:"company"`
	Message            string `json:"message"`
	Sector             string `json:"sector"`
	SubscriptionVolume int    `json:"subscriptionVolume"`
}

// Request builds the outbound payload. Callers validate first; the volume is
// always the derived integer, never the raw selection.
func (f Fields) Request() Request {
	return Request{
		Name:               f.Name,
		Email:              strings.TrimSpace(f.Email),
		Company:            f.Company,
		Message:            f.Message,
		Sector:             f.Sector,
		SubscriptionVolume: f.Volume.Amount,
	}
}
