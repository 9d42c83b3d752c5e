package domain

import (
	"fmt"
	"strings"
)

type PropertyType string

const (
	PropertyUnknown    PropertyType = "unknown"
	PropertyHouse      PropertyType = "house"
	PropertyApartment  PropertyType = "apartment"
	PropertyLand       PropertyType = "land"
	PropertyOffice     PropertyType = "office"
	PropertyCommercial PropertyType = "commercial"
	PropertyWarehouse  PropertyType = "warehouse"
	PropertyParking    PropertyType = "parking"
)

type Operation string

const (
	OperationSale Operation = "sale"
	OperationRent Operation = "rent"
)

type Currency string

const (
	CurrencyCLP Currency = "CLP" // local currency
	CurrencyUF  Currency = "UF"  // inflation-indexed reference unit
)

type AreaUnit string

const (
	AreaM2      AreaUnit = "m2"
	AreaHectare AreaUnit = "ha"
)

type Constraint string

const (
	ConstraintPrice Constraint = "price"
	ConstraintZone  Constraint = "zone"
)

type Location struct {
	Name string `json:"name"` // normalized, display form
	Raw  string `json:"raw"`  // text that matched
}

type ZoneQualifier struct {
	Raw     string `json:"raw"`
	Tag     string `json:"tag"`
	Premium bool   `json:"premium"`
}

type Budget struct {
	Amount       float64  `json:"amount"`
	Min          *float64 `json:"min,omitempty"`
	Currency     Currency `json:"currency"`
	TolerancePct float64  `json:"tolerance_pct"`
}

// Ceiling is the tolerance-adjusted upper bound, in the budget's own currency.
func (b Budget) Ceiling() float64 { return b.Amount * (1 + b.TolerancePct/100) }

type Area struct {
	Amount float64  `json:"amount"`
	Unit   AreaUnit `json:"unit"`
	M2     float64  `json:"m2"`
}

// SearchIntent is built once per query by the intent parser and never mutated.
type SearchIntent struct {
	Query               string         `json:"query"`
	PropertyType        PropertyType   `json:"property_type"`
	Operation           Operation      `json:"operation"`
	Location            *Location      `json:"location,omitempty"`
	ZoneQualifier       *ZoneQualifier `json:"zone_qualifier,omitempty"`
	Budget              *Budget        `json:"budget,omitempty"`
	Area                *Area          `json:"area,omitempty"`
	BedroomsMin         *int           `json:"bedrooms_min,omitempty"`
	BathroomsMin        *int           `json:"bathrooms_min,omitempty"`
	RequiredFeatures    []string       `json:"required_features,omitempty"`
	HardConstraints     []Constraint   `json:"hard_constraints,omitempty"`
	Confidence          float64        `json:"confidence"`
	ClarifyingQuestions []string       `json:"clarifying_questions,omitempty"`
}

func (i SearchIntent) IsHard(c Constraint) bool {
	for _, h := range i.HardConstraints {
		if h == c {
			return true
		}
	}
	return false
}

func (i SearchIntent) LocationName() string {
	if i.Location == nil {
		return ""
	}
	return i.Location.Name
}

func (i SearchIntent) PremiumZone() bool {
	return i.ZoneQualifier != nil && i.ZoneQualifier.Premium
}

// Summary renders the intent on one line for the downstream context block.
func (i SearchIntent) Summary() string {
	var parts []string
	if i.PropertyType != PropertyUnknown && i.PropertyType != "" {
		parts = append(parts, SpanishType(i.PropertyType))
	}
	if i.Operation == OperationRent {
		parts = append(parts, "arriendo")
	} else {
		parts = append(parts, "venta")
	}
	if i.Location != nil {
		parts = append(parts, i.Location.Name)
	}
	if i.ZoneQualifier != nil {
		parts = append(parts, i.ZoneQualifier.Raw)
	}
	if i.Budget != nil {
		b := i.Budget
		s := "hasta " + FormatAmount(b.Amount, b.Currency)
		if b.Min != nil {
			s = "entre " + FormatAmount(*b.Min, b.Currency) + " y " + FormatAmount(b.Amount, b.Currency)
		}
		parts = append(parts, fmt.Sprintf("%s (±%.0f%%)", s, b.TolerancePct))
	}
	if i.Area != nil {
		parts = append(parts, FormatThousands(i.Area.M2)+" m²")
	}
	if i.BedroomsMin != nil {
		parts = append(parts, fmt.Sprintf("%d+ dormitorios", *i.BedroomsMin))
	}
	if i.BathroomsMin != nil {
		parts = append(parts, fmt.Sprintf("%d+ baños", *i.BathroomsMin))
	}
	if len(i.RequiredFeatures) > 0 {
		parts = append(parts, "con "+strings.Join(i.RequiredFeatures, ", "))
	}
	return strings.Join(parts, " · ")
}

var spanishTypes = map[PropertyType]string{
	PropertyHouse:      "casa",
	PropertyApartment:  "departamento",
	PropertyLand:       "terreno",
	PropertyOffice:     "oficina",
	PropertyCommercial: "local comercial",
	PropertyWarehouse:  "bodega",
	PropertyParking:    "estacionamiento",
}

func SpanishType(t PropertyType) string {
	if s, ok := spanishTypes[t]; ok {
		return s
	}
	return "propiedad"
}
