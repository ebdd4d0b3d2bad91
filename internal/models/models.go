package models

import "time"

const (
	OutletTypeRetail = "retail"
	OutletTypeSalon  = "salon"
)

// AssignedOutlet is the back-office reference record naming an outlet an agent must survey.
type AssignedOutlet struct {
	AssignedOutletID string  `json:"assigned_outlet_id"`
	AgentID          string  `json:"agent_id"`
	OutletName       string  `json:"outlet_name"`
	OutletType       string  `json:"outlet_type"`
	Community        string  `json:"community"`
	Assembly         string  `json:"assembly"`
	Address          string  `json:"address"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	ContactName      string  `json:"contact_name"`
	ContactPhone     string  `json:"contact_phone"`
	BusinessPhone    string  `json:"business_phone"`
}

// CaptureDetails holds the fields an agent adds when validating an outlet.
type CaptureDetails struct {
	CapturedID           string     `json:"captured_id"`
	AgentUserID          string     `json:"agent_user_id"`
	OutletFrontImage     *string    `json:"outlet_front_image"`
	OutletSideImage      *string    `json:"outlet_side_image"`
	TelescopicImage      *string    `json:"telescopic_image"`
	ProductNames         []string   `json:"product_names"`
	ProductImages        []*string  `json:"product_images"`
	Headerboard          bool       `json:"headerboard"`
	HeaderboardAgreement bool       `json:"headerboard_agreement"`
	Painted              bool       `json:"painted"`
	PaintedAgreement     bool       `json:"painted_agreement"`
	Telescopic           bool       `json:"telescopic"`
	TelescopicAgreement  bool       `json:"telescopic_agreement"`
	NumberOfStylists     int        `json:"number_of_stylists"`
	AgreementDate        *time.Time `json:"partnership_agreement_date"`
	ExpiringDate         *time.Time `json:"partnership_expiring_date"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// CapturedOutlet is the agent-owned validation record. It carries a copy of the
// assigned fields so it can be shown without its assigned counterpart.
type CapturedOutlet struct {
	AssignedOutlet
	CaptureDetails
}

// ImageURLs lists every non-empty image URL referenced by the record.
func (c CapturedOutlet) ImageURLs() []string {
	var out []string
	for _, u := range []*string{c.OutletFrontImage, c.OutletSideImage, c.TelescopicImage} {
		if u != nil && *u != "" {
			out = append(out, *u)
		}
	}
	for _, u := range c.ProductImages {
		if u != nil && *u != "" {
			out = append(out, *u)
		}
	}
	return out
}

// Outlet is one entry of the merged per-agent view.
type Outlet struct {
	AssignedOutlet
	*CaptureDetails
	IsValidated bool `json:"_isValidated"`
}

// ID returns the captured id for validated outlets and the assigned id otherwise.
func (o Outlet) ID() string {
	if o.CaptureDetails != nil && o.CaptureDetails.CapturedID != "" {
		return o.CaptureDetails.CapturedID
	}
	return o.AssignedOutletID
}

func FromAssigned(a AssignedOutlet) Outlet {
	return Outlet{AssignedOutlet: a}
}

func FromCaptured(c CapturedOutlet) Outlet {
	details := c.CaptureDetails
	return Outlet{AssignedOutlet: c.AssignedOutlet, CaptureDetails: &details, IsValidated: true}
}

type Product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type AgentProfile struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
}

// AgentSession identifies the signed-in agent for a request.
type AgentSession struct {
	UserID    string `json:"user_id"`
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
	Email     string `json:"email"`
}
