package model

// ProviderType classifies what kind of service a circuit provider sells.
type ProviderType string

const (
	ProviderTransit   ProviderType = "transit"
	ProviderBackbone  ProviderType = "backbone"
	ProviderTransport ProviderType = "transport"
	ProviderPeering   ProviderType = "peering"
	ProviderFacility  ProviderType = "facility"
	ProviderMulti     ProviderType = "multi"
)

// Valid reports whether t is one of the known provider types.
func (t ProviderType) Valid() bool {
	switch t {
	case ProviderTransit, ProviderBackbone, ProviderTransport,
		ProviderPeering, ProviderFacility, ProviderMulti:
		return true
	}
	return false
}

// Provider is a circuit vendor that sends maintenance notifications.
// (Name, Type) is unique.
type Provider struct {
	ID       string       `json:"id" db:"id"`
	Name     string       `json:"name" db:"name"`
	Type     ProviderType `json:"type" db:"type"`
	EmailEsc string       `json:"email_esc" db:"email_esc"`
}

// Circuit is a single provider service. ProviderCID is globally unique.
type Circuit struct {
	ID          string `json:"id" db:"id"`
	ProviderCID string `json:"provider_cid" db:"provider_cid"`
	ASide       string `json:"a_side" db:"a_side"`
	ZSide       string `json:"z_side" db:"z_side"`
	ProviderID  string `json:"provider_id" db:"provider_id"`
}
