// Package parser turns raw NF-e XML documents into normalized parsed notes.
// It is tolerant about envelopes and timestamps but strict about structure:
// a document without a header, header detail or counterparty block, or with
// an unparseable numeric field, is rejected as malformed.
package parser

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/nfe-ledger/internal/domain/note"
	"github.com/nfe-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// naturalKeyPrefix is the document-type prefix carried by the header Id
// attribute, stripped to obtain the note's natural key.
const naturalKeyPrefix = "NFe"

// MalformedDocumentError indicates a structural parse failure. It is
// recovered per document inside a batch and never aborts a whole import.
type MalformedDocumentError struct {
	Source string // file path or other origin of the document
	Reason string
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed document %s: %s", e.Source, e.Reason)
}

// infNFe mirrors the header element of an NF-e document. Field matching is
// by local name, so namespaced and namespace-less documents both decode.
type infNFe struct {
	ID    string      `xml:"Id,attr"`
	Ide   *ideBlock   `xml:"ide"`
	Emit  *partyBlock `xml:"emit"`
	Dest  *partyBlock `xml:"dest"`
	Total *totalBlock `xml:"total"`
	Dets  []detBlock  `xml:"det"`
}

type ideBlock struct {
	DhEmi string `xml:"dhEmi"`
	DEmi  string `xml:"dEmi"`
	TpNF  string `xml:"tpNF"`
}

type partyBlock struct {
	CNPJ  string `xml:"CNPJ"`
	CPF   string `xml:"CPF"`
	XNome string `xml:"xNome"`
}

type totalBlock struct {
	ICMSTot *icmsTotBlock `xml:"ICMSTot"`
}

type icmsTotBlock struct {
	VNF string `xml:"vNF"`
}

type detBlock struct {
	Prod *prodBlock `xml:"prod"`
}

type prodBlock struct {
	CProd  string `xml:"cProd"`
	XProd  string `xml:"xProd"`
	QCom   string `xml:"qCom"`
	VUnCom string `xml:"vUnCom"`
	VProd  string `xml:"vProd"`
}

// ParseFile reads and parses a single document from disk
func ParseFile(path string) (*note.ParsedNote, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &MalformedDocumentError{Source: path, Reason: err.Error()}
	}
	defer f.Close()

	return Parse(f, path)
}

// Parse decodes one document into a normalized ParsedNote. The source string
// only labels errors; it carries no semantics.
func Parse(r io.Reader, source string) (*note.ParsedNote, error) {
	inf, err := findHeader(r, source)
	if err != nil {
		return nil, err
	}

	if inf.Ide == nil {
		return nil, &MalformedDocumentError{Source: source, Reason: "no header detail (ide) block found"}
	}
	if inf.Emit == nil && inf.Dest == nil {
		return nil, &MalformedDocumentError{Source: source, Reason: "no issuer (emit) or recipient (dest) block found"}
	}

	direction := shared.DirectionExit
	if strings.TrimSpace(inf.Ide.TpNF) == "0" {
		direction = shared.DirectionEntry
	}

	// For entries the issuer is the supplier; for exits the recipient is
	// the customer.
	counterparty := inf.Dest
	if direction == shared.DirectionEntry {
		counterparty = inf.Emit
	}
	var counterpartyName, counterpartyTax string
	if counterparty != nil {
		counterpartyName = counterparty.XNome
		counterpartyTax = counterparty.CNPJ
		if counterpartyTax == "" {
			counterpartyTax = counterparty.CPF
		}
	}

	total := decimal.Zero
	if inf.Total != nil && inf.Total.ICMSTot != nil {
		total, err = parseDecimal(inf.Total.ICMSTot.VNF, "total value (vNF)", source)
		if err != nil {
			return nil, err
		}
	}

	items := make([]note.ParsedItem, 0, len(inf.Dets))
	for _, det := range inf.Dets {
		if det.Prod == nil {
			// A line item without its product sub-block is skipped,
			// not an error.
			continue
		}
		qty, err := parseDecimal(det.Prod.QCom, "item quantity (qCom)", source)
		if err != nil {
			return nil, err
		}
		unitPrice, err := parseDecimal(det.Prod.VUnCom, "item unit price (vUnCom)", source)
		if err != nil {
			return nil, err
		}
		lineTotal, err := parseDecimal(det.Prod.VProd, "item total (vProd)", source)
		if err != nil {
			return nil, err
		}
		items = append(items, note.ParsedItem{
			ProductCode: det.Prod.CProd,
			Description: det.Prod.XProd,
			Quantity:    qty,
			UnitPrice:   unitPrice,
			LineTotal:   lineTotal,
		})
	}

	return &note.ParsedNote{
		NaturalKey:       strings.TrimPrefix(inf.ID, naturalKeyPrefix),
		IssuedAt:         issuedAt(inf.Ide),
		Direction:        direction,
		CounterpartyName: counterpartyName,
		CounterpartyTax:  counterpartyTax,
		Total:            total,
		Items:            items,
	}, nil
}

// findHeader walks the token stream until it encounters the infNFe element,
// wherever it is nested, so envelope roots like nfeProc are tolerated.
func findHeader(r io.Reader, source string) (*infNFe, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, &MalformedDocumentError{Source: source, Reason: "no infNFe header element found"}
		}
		if err != nil {
			return nil, &MalformedDocumentError{Source: source, Reason: "invalid XML: " + err.Error()}
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "infNFe" {
			continue
		}
		var inf infNFe
		if err := dec.DecodeElement(&inf, &start); err != nil {
			return nil, &MalformedDocumentError{Source: source, Reason: "invalid infNFe element: " + err.Error()}
		}
		return &inf, nil
	}
}

// issuedAt resolves the issue timestamp with the lenient fallback chain:
// full date-time, then date-only, then the current processing time. An
// unreadable timestamp never fails the document.
func issuedAt(ide *ideBlock) time.Time {
	if ts, ok := parseTimestamp(ide.DhEmi); ok {
		return ts
	}
	if ts, ok := parseTimestamp(ide.DEmi); ok {
		return ts
	}
	return time.Now()
}

// timestampLayouts are tried in order; documents carry either a full offset
// timestamp (dhEmi) or a bare date (dEmi), and some emitters omit the offset.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// parseDecimal converts a numeric document field. An absent field defaults
// to zero; a present but unparseable one is a structural failure, unlike
// timestamps which fall back silently.
func parseDecimal(value, field, source string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, &MalformedDocumentError{
			Source: source,
			Reason: fmt.Sprintf("unparseable %s: %q", field, value),
		}
	}
	return d, nil
}
