package registry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWSDL_ResolvesPorts(t *testing.T) {
	t.Parallel()

	d, err := parseWSDL([]byte(sampleWSDL("https://example.test/soap")))
	require.NoError(t, err)

	ep, err := d.lookup("Marktstammdatenregister", "Anlage")
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/soap", ep.Address)
	assert.Equal(t, testNamespace, ep.Namespace)
	assert.Equal(t, map[string]string{
		"GetEinheitWind":   "urn:GetEinheitWind",
		"GetLokaleUhrzeit": "urn:GetLokaleUhrzeit",
	}, ep.Operations)
}

func TestParseWSDL_Soap12AddressFallback(t *testing.T) {
	t.Parallel()

	doc := strings.NewReplacer(
		`xmlns:soap="http://schemas.xmlsoap.org/wsdl/soap/"`,
		`xmlns:soap="http://schemas.xmlsoap.org/wsdl/soap12/"`,
	).Replace(sampleWSDL("https://example.test/soap12"))

	d, err := parseWSDL([]byte(doc))
	require.NoError(t, err)
	ep, err := d.lookup("Marktstammdatenregister", "Anlage")
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/soap12", ep.Address)
	assert.Equal(t, "urn:GetEinheitWind", ep.Operations["GetEinheitWind"])
}

func TestParseWSDL_Strict(t *testing.T) {
	t.Parallel()

	valid := sampleWSDL("https://example.test/soap")
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "html page",
			doc:     "<html><body>Wartungsarbeiten</body></html>",
			wantErr: "expected element type <definitions>",
		},
		{
			name:    "foreign namespace",
			doc:     `<definitions xmlns="urn:other"><service name="x"/></definitions>`,
			wantErr: "want wsdl:definitions",
		},
		{
			name:    "not xml",
			doc:     "maintenance",
			wantErr: "parse wsdl",
		},
		{
			name:    "unknown binding",
			doc:     strings.Replace(valid, `binding="tns:AnlageBinding"`, `binding="tns:Missing"`, 1),
			wantErr: `references unknown binding "tns:Missing"`,
		},
		{
			name:    "unknown port type",
			doc:     strings.Replace(valid, `type="tns:AnlagePortType"`, `type="tns:Nope"`, 1),
			wantErr: `references unknown portType "tns:Nope"`,
		},
		{
			name:    "no address",
			doc:     strings.Replace(valid, `<soap:address location="https://example.test/soap"/>`, "", 1),
			wantErr: "has no soap address",
		},
		{
			name:    "no services",
			doc:     valid[:strings.Index(valid, "<wsdl:service")] + "</wsdl:definitions>",
			wantErr: "no services defined",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := parseWSDL([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLookup_ListsAvailableNames(t *testing.T) {
	t.Parallel()

	d, err := parseWSDL([]byte(sampleWSDL("https://example.test/soap")))
	require.NoError(t, err)

	_, err = d.lookup("Marktakteur", "Anlage")
	require.EqualError(t, err, `unknown service "Marktakteur", available: Marktstammdatenregister`)

	_, err = d.lookup("Marktstammdatenregister", "Akteur")
	require.EqualError(t, err, `unknown port "Akteur" on service "Marktstammdatenregister", available: Anlage`)
}
