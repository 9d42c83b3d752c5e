package facts_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propsearch/internal/domain"
	"propsearch/internal/facts"
)

func TestExtract_CLPPriceAreaRooms(t *testing.T) {
	f := facts.New().Extract("Casa en venta Temuco $150.000.000 120 m2 3 dormitorios 2 baños", "")

	require.NotNil(t, f.PriceCLP)
	assert.Equal(t, 150000000.0, *f.PriceCLP)
	assert.Nil(t, f.PriceUF)
	require.NotNil(t, f.AreaM2)
	assert.Equal(t, 120.0, *f.AreaM2)
	require.NotNil(t, f.PricePerM2)
	assert.Equal(t, 1250000.0, *f.PricePerM2)
	require.NotNil(t, f.Bedrooms)
	assert.Equal(t, 3, *f.Bedrooms)
	require.NotNil(t, f.Bathrooms)
	assert.Equal(t, 2, *f.Bathrooms)
}

func TestExtract_UFPrefixAndShorthandRooms(t *testing.T) {
	f := facts.New().Extract("Departamento UF 4.500 Ñuñoa 2d1b 65 m²", "")

	require.NotNil(t, f.PriceUF)
	assert.Equal(t, 4500.0, *f.PriceUF)
	assert.Nil(t, f.PriceCLP)
	assert.Nil(t, f.PricePerM2, "no price per area from a UF-only price")
	require.NotNil(t, f.AreaM2)
	assert.Equal(t, 65.0, *f.AreaM2)
	require.NotNil(t, f.Bedrooms)
	assert.Equal(t, 2, *f.Bedrooms)
	require.NotNil(t, f.Bathrooms)
	assert.Equal(t, 1, *f.Bathrooms)
}

func TestExtract_MillionsAndHectares(t *testing.T) {
	f := facts.New().Extract("Parcela 2 hectáreas 45 millones", "")

	require.NotNil(t, f.PriceCLP)
	assert.Equal(t, 45e6, *f.PriceCLP)
	require.NotNil(t, f.AreaM2)
	assert.Equal(t, 20000.0, *f.AreaM2)
	require.NotNil(t, f.PricePerM2)
	assert.Equal(t, 2250.0, *f.PricePerM2)
}

func TestExtract_UFSuffix(t *testing.T) {
	f := facts.New().Extract("Hermosa casa 5.000 UF 3 dormitorios", "")
	require.NotNil(t, f.PriceUF)
	assert.Equal(t, 5000.0, *f.PriceUF)
}

func TestExtract_NothingMatches(t *testing.T) {
	f := facts.New().Extract("Hermosa propiedad con vista", "")
	assert.Nil(t, f.PriceCLP)
	assert.Nil(t, f.PriceUF)
	assert.Nil(t, f.AreaM2)
	assert.Nil(t, f.PricePerM2)
	assert.Nil(t, f.Bedrooms)
	assert.Nil(t, f.Bathrooms)
	assert.Equal(t, domain.URLUnknown, f.URLCategory)
}

func TestClassifyURL(t *testing.T) {
	cases := []struct {
		url  string
		want domain.URLCategory
	}{
		{"https://www.portalinmobiliario.com/venta/casa/temuco-araucania", domain.URLListing},
		{"https://www.portalinmobiliario.com/venta/casa/temuco/_Desde_49", domain.URLListing},
		{"https://www.yapo.cl/region/inmuebles?page=2", domain.URLListing},
		{"https://www.toctoc.com/venta/casa/temuco/12345678", domain.URLSpecific},
		{"https://casa.mercadolibre.cl/MLC-1234567890-casa-en-temuco-_JM", domain.URLSpecific},
		{"https://www.icasas.cl/propiedad/casa-en-temuco", domain.URLSpecific},
		{"https://example.cl/about", domain.URLUnknown},
		{"not a url", domain.URLUnknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, facts.ClassifyURL(c.url), c.url)
	}
}
