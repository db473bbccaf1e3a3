package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/nfe-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const entryDocument = `<?xml version="1.0" encoding="UTF-8"?>
<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe">
  <NFe>
    <infNFe Id="NFe35250112345678000199550010000001231000001234">
      <ide>
        <tpNF>0</tpNF>
        <dhEmi>2025-10-31T13:11:06-03:00</dhEmi>
      </ide>
      <emit>
        <CNPJ>12345678000199</CNPJ>
        <xNome>Fornecedor Alfa LTDA</xNome>
      </emit>
      <dest>
        <CNPJ>98765432000155</CNPJ>
        <xNome>Comercio Beta</xNome>
      </dest>
      <det nItem="1">
        <prod>
          <cProd>P1</cProd>
          <xProd>Parafuso 10mm</xProd>
          <qCom>10</qCom>
          <vUnCom>5</vUnCom>
          <vProd>50</vProd>
        </prod>
      </det>
      <total>
        <ICMSTot>
          <vNF>50.00</vNF>
        </ICMSTot>
      </total>
    </infNFe>
  </NFe>
</nfeProc>`

func TestParse_EntryDocument(t *testing.T) {
	parsed, err := Parse(strings.NewReader(entryDocument), "entry.xml")
	require.NoError(t, err)

	assert.Equal(t, "35250112345678000199550010000001231000001234", parsed.NaturalKey)
	assert.Equal(t, shared.DirectionEntry, parsed.Direction)

	// Entry notes resolve the counterparty from the issuer block
	assert.Equal(t, "Fornecedor Alfa LTDA", parsed.CounterpartyName)
	assert.Equal(t, "12345678000199", parsed.CounterpartyTax)

	expectedIssued, err := time.Parse(time.RFC3339, "2025-10-31T13:11:06-03:00")
	require.NoError(t, err)
	assert.True(t, parsed.IssuedAt.Equal(expectedIssued))

	assert.True(t, parsed.Total.Equal(decimal.RequireFromString("50.00")))

	require.Len(t, parsed.Items, 1)
	item := parsed.Items[0]
	assert.Equal(t, "P1", item.ProductCode)
	assert.Equal(t, "Parafuso 10mm", item.Description)
	assert.True(t, item.Quantity.Equal(decimal.NewFromInt(10)))
	assert.True(t, item.UnitPrice.Equal(decimal.NewFromInt(5)))
	assert.True(t, item.LineTotal.Equal(decimal.NewFromInt(50)))
}

func TestParse_ExitDocumentUsesRecipient(t *testing.T) {
	doc := `<NFe><infNFe Id="NFe111">
		<ide><tpNF>1</tpNF><dhEmi>2025-01-15T08:00:00Z</dhEmi></ide>
		<emit><CNPJ>11111111000111</CNPJ><xNome>Emissor</xNome></emit>
		<dest><CPF>12345678901</CPF><xNome>Cliente Gama</xNome></dest>
	</infNFe></NFe>`

	parsed, err := Parse(strings.NewReader(doc), "exit.xml")
	require.NoError(t, err)

	assert.Equal(t, "111", parsed.NaturalKey)
	assert.Equal(t, shared.DirectionExit, parsed.Direction)
	assert.Equal(t, "Cliente Gama", parsed.CounterpartyName)
	// Recipient has no CNPJ, so the CPF fallback supplies the tax id
	assert.Equal(t, "12345678901", parsed.CounterpartyTax)
	// Absent totals block defaults to zero
	assert.True(t, parsed.Total.IsZero())
	assert.Empty(t, parsed.Items)
}

func TestParse_MissingDirectionCodeMeansExit(t *testing.T) {
	doc := `<NFe><infNFe Id="NFe222">
		<ide><dhEmi>2025-01-15T08:00:00Z</dhEmi></ide>
		<dest><CNPJ>1</CNPJ><xNome>X</xNome></dest>
	</infNFe></NFe>`

	parsed, err := Parse(strings.NewReader(doc), "no-tpnf.xml")
	require.NoError(t, err)
	assert.Equal(t, shared.DirectionExit, parsed.Direction)
}

func TestParse_DateOnlyFallback(t *testing.T) {
	doc := `<NFe><infNFe Id="NFe333">
		<ide><tpNF>0</tpNF><dEmi>2025-03-20</dEmi></ide>
		<emit><CNPJ>1</CNPJ><xNome>F</xNome></emit>
	</infNFe></NFe>`

	parsed, err := Parse(strings.NewReader(doc), "date-only.xml")
	require.NoError(t, err)
	assert.Equal(t, 2025, parsed.IssuedAt.Year())
	assert.Equal(t, time.March, parsed.IssuedAt.Month())
	assert.Equal(t, 20, parsed.IssuedAt.Day())
}

func TestParse_UnreadableTimestampFallsBackToNow(t *testing.T) {
	doc := `<NFe><infNFe Id="NFe444">
		<ide><tpNF>0</tpNF><dhEmi>not-a-date</dhEmi><dEmi>also-bad</dEmi></ide>
		<emit><CNPJ>1</CNPJ><xNome>F</xNome></emit>
	</infNFe></NFe>`

	before := time.Now()
	parsed, err := Parse(strings.NewReader(doc), "bad-date.xml")
	require.NoError(t, err)
	assert.WithinDuration(t, before, parsed.IssuedAt, 5*time.Second)
}

func TestParse_ItemWithoutProductBlockIsSkipped(t *testing.T) {
	doc := `<NFe><infNFe Id="NFe555">
		<ide><tpNF>0</tpNF><dhEmi>2025-01-15T08:00:00Z</dhEmi></ide>
		<emit><CNPJ>1</CNPJ><xNome>F</xNome></emit>
		<det nItem="1"><infAdProd>sem prod</infAdProd></det>
		<det nItem="2"><prod><cProd>P2</cProd><xProd>Porca</xProd><qCom>3</qCom></prod></det>
	</infNFe></NFe>`

	parsed, err := Parse(strings.NewReader(doc), "skip-item.xml")
	require.NoError(t, err)
	require.Len(t, parsed.Items, 1)
	assert.Equal(t, "P2", parsed.Items[0].ProductCode)
	assert.True(t, parsed.Items[0].Quantity.Equal(decimal.NewFromInt(3)))
	// Absent numeric item fields default to zero
	assert.True(t, parsed.Items[0].UnitPrice.IsZero())
	assert.True(t, parsed.Items[0].LineTotal.IsZero())
}

func TestParse_MalformedDocuments(t *testing.T) {
	testCases := []struct {
		name   string
		doc    string
		reason string
	}{
		{
			name:   "NoHeaderElement",
			doc:    `<nfeProc><other>nothing here</other></nfeProc>`,
			reason: "no infNFe header element",
		},
		{
			name:   "NoHeaderDetailBlock",
			doc:    `<NFe><infNFe Id="NFe1"><emit><xNome>F</xNome></emit></infNFe></NFe>`,
			reason: "no header detail",
		},
		{
			name: "NoCounterpartyBlocks",
			doc: `<NFe><infNFe Id="NFe1"><ide><tpNF>0</tpNF></ide>
				<total><ICMSTot><vNF>10</vNF></ICMSTot></total></infNFe></NFe>`,
			reason: "no issuer (emit) or recipient (dest) block",
		},
		{
			name: "UnparseableTotal",
			doc: `<NFe><infNFe Id="NFe1"><ide><tpNF>0</tpNF></ide>
				<emit><CNPJ>1</CNPJ><xNome>F</xNome></emit>
				<total><ICMSTot><vNF>ten reais</vNF></ICMSTot></total></infNFe></NFe>`,
			reason: "unparseable total value",
		},
		{
			name: "UnparseableItemQuantity",
			doc: `<NFe><infNFe Id="NFe1"><ide><tpNF>0</tpNF></ide>
				<emit><CNPJ>1</CNPJ><xNome>F</xNome></emit>
				<det><prod><cProd>P1</cProd><qCom>many</qCom></prod></det></infNFe></NFe>`,
			reason: "unparseable item quantity",
		},
		{
			name:   "InvalidXML",
			doc:    `<NFe><infNFe Id="NFe1">`,
			reason: "invalid infNFe element",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(strings.NewReader(tc.doc), tc.name+".xml")
			require.Error(t, err)
			assert.Nil(t, parsed)

			var malformed *MalformedDocumentError
			require.ErrorAs(t, err, &malformed)
			assert.Contains(t, malformed.Reason, tc.reason)
			assert.Contains(t, malformed.Source, tc.name)
		})
	}
}

func TestParseFile_MissingFile(t *testing.T) {
	parsed, err := ParseFile("/does/not/exist.xml")
	require.Error(t, err)
	assert.Nil(t, parsed)

	var malformed *MalformedDocumentError
	assert.ErrorAs(t, err, &malformed)
}
