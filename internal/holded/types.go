package holded

// Invoice is one invoice document reduced to what the jobs read.
type Invoice struct {
	ID         string        `json:"id"`
	ContactRef string        `json:"contact"`
	Products   []ProductLine `json:"products"`
}

// ProductLine is one invoiced line. ServiceRef links back to the Holded
// service; Tags carry the billing frequency and plan-tier markers.
type ProductLine struct {
	ServiceRef string   `json:"serviceId"`
	Name       string   `json:"name"`
	Tags       []string `json:"tags"`
}

// Contact is a Holded contact. Code carries the agency-internal numeric id
// used for board-name matching ("" when the contact is not linked).
type Contact struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// Service is a Holded product/service entry.
type Service struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Kind string   `json:"kind"`
	Tags []string `json:"tags"`
}
