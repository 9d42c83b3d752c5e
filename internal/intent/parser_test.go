package intent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propsearch/internal/domain"
	"propsearch/internal/intent"
	"propsearch/internal/tables"
)

func parser() *intent.Parser { return intent.New(tables.Default()) }

func TestParse_HouseTemucoUF(t *testing.T) {
	in := parser().Parse("casa en Temuco hasta 5000 UF 3 dormitorios")

	assert.Equal(t, domain.PropertyHouse, in.PropertyType)
	assert.Equal(t, domain.OperationSale, in.Operation)
	require.NotNil(t, in.Location)
	assert.Equal(t, "Temuco", in.Location.Name)
	require.NotNil(t, in.Budget)
	assert.Equal(t, 5000.0, in.Budget.Amount)
	assert.Equal(t, domain.CurrencyUF, in.Budget.Currency)
	assert.Equal(t, 10.0, in.Budget.TolerancePct)
	require.NotNil(t, in.BedroomsMin)
	assert.Equal(t, 3, *in.BedroomsMin)
	assert.GreaterOrEqual(t, in.Confidence, 0.75)
	assert.Equal(t, []domain.Constraint{domain.ConstraintPrice}, in.HardConstraints)
	assert.Empty(t, in.ClarifyingQuestions)
}

func TestParse_GroupedUF(t *testing.T) {
	in := parser().Parse("departamento hasta 5.000 UF")
	require.NotNil(t, in.Budget)
	assert.Equal(t, 5000.0, in.Budget.Amount)
	assert.Equal(t, domain.CurrencyUF, in.Budget.Currency)
}

func TestParse_HectaresBecomeLand(t *testing.T) {
	in := parser().Parse("2,5 hectáreas en Pucón")

	require.NotNil(t, in.Area)
	assert.Equal(t, domain.AreaHectare, in.Area.Unit)
	assert.Equal(t, 2.5*10000, in.Area.M2)
	assert.Equal(t, domain.PropertyLand, in.PropertyType, "hectares imply land")
}

func TestParse_LargeM2BecomesLand(t *testing.T) {
	in := parser().Parse("5000 m2 en Pirque")
	require.NotNil(t, in.Area)
	assert.Equal(t, 5000.0, in.Area.M2)
	assert.Equal(t, domain.PropertyLand, in.PropertyType)

	in = parser().Parse("departamento 80 m2 en Pirque")
	assert.Equal(t, domain.PropertyApartment, in.PropertyType)
}

func TestParse_Millions(t *testing.T) {
	in := parser().Parse("casa en La Florida hasta 150 millones")
	require.NotNil(t, in.Budget)
	assert.Equal(t, 150e6, in.Budget.Amount)
	assert.Equal(t, domain.CurrencyCLP, in.Budget.Currency)
	assert.Equal(t, "La Florida", in.LocationName())
}

func TestParse_RangeAndApprox(t *testing.T) {
	in := parser().Parse("depto en Ñuñoa entre 3.000 y 4.500 UF aprox")

	require.NotNil(t, in.Budget)
	require.NotNil(t, in.Budget.Min)
	assert.Equal(t, 3000.0, *in.Budget.Min)
	assert.Equal(t, 4500.0, in.Budget.Amount)
	assert.Equal(t, 20.0, in.Budget.TolerancePct)
	assert.Equal(t, "Ñuñoa", in.LocationName())
	assert.Equal(t, domain.PropertyApartment, in.PropertyType)
}

func TestParse_LongestPlaceWins(t *testing.T) {
	in := parser().Parse("casa en San Pedro de la Paz")
	assert.Equal(t, "San Pedro de la Paz", in.LocationName())

	in = parser().Parse("terreno en San José de la Mariquina")
	assert.Equal(t, "San José de la Mariquina", in.LocationName())
}

func TestParse_PlaceNameDoesNotLeakIntoType(t *testing.T) {
	in := parser().Parse("sitio en Padre Las Casas")
	assert.Equal(t, "Padre Las Casas", in.LocationName())
	assert.Equal(t, domain.PropertyLand, in.PropertyType)
}

func TestParse_ZoneQualifierIsHard(t *testing.T) {
	in := parser().Parse("casa en sector alto de Temuco")

	require.NotNil(t, in.ZoneQualifier)
	assert.Equal(t, "premium", in.ZoneQualifier.Tag)
	assert.True(t, in.PremiumZone())
	assert.True(t, in.IsHard(domain.ConstraintZone))
	assert.False(t, in.IsHard(domain.ConstraintPrice))
}

func TestParse_RentFeaturesAndShorthand(t *testing.T) {
	in := parser().Parse("arriendo departamento 2d2b amoblado con piscina en Providencia")

	assert.Equal(t, domain.OperationRent, in.Operation)
	assert.Equal(t, "Providencia", in.LocationName())
	require.NotNil(t, in.BedroomsMin)
	assert.Equal(t, 2, *in.BedroomsMin)
	require.NotNil(t, in.BathroomsMin)
	assert.Equal(t, 2, *in.BathroomsMin)
	assert.ElementsMatch(t, []string{"furnished", "pool"}, in.RequiredFeatures)
}

func TestParse_FallbackLocation(t *testing.T) {
	in := parser().Parse("casa en venta en Curacautín, con quincho")
	require.NotNil(t, in.Location)
	assert.Equal(t, "Curacautín", in.Location.Name)
	assert.Equal(t, []string{"grill"}, in.RequiredFeatures)
}

func TestParse_NothingRecognised(t *testing.T) {
	in := parser().Parse("hola")

	assert.Equal(t, domain.PropertyUnknown, in.PropertyType)
	assert.Nil(t, in.Location)
	assert.Nil(t, in.Budget)
	assert.Zero(t, in.Confidence)
	assert.Len(t, in.ClarifyingQuestions, 2)
}

func TestSummary(t *testing.T) {
	in := parser().Parse("casa en Temuco hasta 5.000 UF 3 dormitorios")
	assert.Equal(t, "casa · venta · Temuco · hasta 5.000 UF (±10%) · 3+ dormitorios", in.Summary())
}
