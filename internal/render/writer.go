// =============================================================================
// Faktury Export - XML Export Writer
// =============================================================================
//
// This module serializes draft invoices into the invoice interchange XML.
//
// XML STRUCTURE:
//
//   <Invoices xmlns="http://munipolis.cz/invoices" version="1.0" exportDate="2024-03-10">
//     <Invoice>
//       <InvoiceNumber>FAK20240310001</InvoiceNumber>   <!-- date + position -->
//       <VariableSymbol>2403100001</VariableSymbol>
//       <IssuedDate>2024-03-10</IssuedDate>
//       <TaxableFulfillmentDate>2024-01-15</TaxableFulfillmentDate>
//       <DueDate>2024-03-24</DueDate>
//       <Currency>CZK</Currency>
//       <Client><ICO/><Name/><Country/></Client>
//       <Items>
//         <Item><Name/><Quantity/><UnitPrice/><VATRate/><VATAmount/><TotalWithVAT/></Item>
//       </Items>
//       <Totals><TotalWithoutVAT/><TotalVAT/><TotalWithVAT/></Totals>
//     </Invoice>
//   </Invoices>
//
// Every amount is written from the effective (edited or computed) line
// values and the totals are summed again here, so the document is consistent
// with itself whatever state the drafts arrive in.
//
// =============================================================================

package render

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dpeterek-muni/faktury-export/internal/types"
	"github.com/shopspring/decimal"
)

// ErrNoInvoices is returned when asked to export an empty batch.
var ErrNoInvoices = errors.New("no invoices provided")

const (
	DefaultNamespace = "http://munipolis.cz/invoices"
	ContentType      = "application/xml"

	schemaVersion = "1.0"
	indentUnit    = "  "
)

// =============================================================================
// OPTIONS AND RESULT
// =============================================================================

// ExportOptions configures one export.
type ExportOptions struct {
	// DueInDays replaces each invoice's own due offset when positive.
	DueInDays int

	// Namespace is the root element namespace. Empty means DefaultNamespace.
	Namespace string
}

// Document is a rendered export ready to be written or sent.
type Document struct {
	Body        []byte
	ContentType string
	FileName    string
}

// Renderer renders export documents. Its clock decides the export date,
// which also seeds invoice numbers.
type Renderer struct {
	Now func() time.Time
}

// New returns a Renderer on the wall clock.
func New() *Renderer {
	return &Renderer{Now: time.Now}
}

// =============================================================================
// MAIN GENERATION FUNCTION
// =============================================================================

// ExportDocument renders invoices as one XML document. Invoice numbers
// follow the order of invoices.
func (r *Renderer) ExportDocument(invoices []*types.DraftInvoice, opts ExportOptions) (*Document, error) {
	if len(invoices) == 0 {
		return nil, ErrNoInvoices
	}
	exportDate := types.DateOf(r.now())
	ns := opts.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}

	root := XMLElement{
		XMLName: xml.Name{Local: "Invoices"},
		Attributes: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: ns},
			{Name: xml.Name{Local: "version"}, Value: schemaVersion},
			{Name: xml.Name{Local: "exportDate"}, Value: exportDate.String()},
		},
	}
	for i, inv := range invoices {
		root.Children = append(root.Children, buildInvoiceElement(inv, i, exportDate, opts))
	}

	var buffer bytes.Buffer
	buffer.WriteString(xml.Header)
	writeElement(&buffer, root, indentUnit, 0)

	return &Document{
		Body:        buffer.Bytes(),
		ContentType: ContentType,
		FileName:    FileName(exportDate),
	}, nil
}

// FileName is the suggested export file name for date.
func FileName(date types.Date) string {
	return fmt.Sprintf("faktury-%s.xml", date)
}

// InvoiceNumber is FAK, the export date as yyyymmdd and the 1-based
// position padded to three digits.
func InvoiceNumber(date types.Date, index int) string {
	return fmt.Sprintf("FAK%s%03d", date.Format("20060102"), index+1)
}

// VariableSymbol is the export date as yymmdd and the 1-based position
// padded to four digits. It stays within the ten digits Czech banks accept.
func VariableSymbol(date types.Date, index int) string {
	return fmt.Sprintf("%s%04d", date.Format("060102"), index+1)
}

// =============================================================================
// ELEMENT BUILDERS
// =============================================================================

func buildInvoiceElement(inv *types.DraftInvoice, index int, exportDate types.Date, opts ExportOptions) XMLElement {
	dueInDays := inv.DueInDays
	if opts.DueInDays > 0 {
		dueInDays = opts.DueInDays
	}
	duzp := inv.TaxableFulfillmentDue
	if duzp.IsZero() {
		duzp = exportDate
	}
	currency := inv.Currency
	if currency == "" {
		currency = "CZK"
	}

	invoice := XMLElement{XMLName: xml.Name{Local: "Invoice"}}
	invoice.add(
		createSimpleElement("InvoiceNumber", InvoiceNumber(exportDate, index)),
		createSimpleElement("VariableSymbol", VariableSymbol(exportDate, index)),
		createSimpleElement("IssuedDate", exportDate.String()),
		createSimpleElement("TaxableFulfillmentDate", duzp.String()),
		createSimpleElement("DueDate", exportDate.AddDays(dueInDays).String()),
		createSimpleElement("Currency", currency),
		XMLElement{
			XMLName: xml.Name{Local: "Client"},
			Children: []XMLElement{
				createSimpleElement("ICO", inv.TaxID),
				createSimpleElement("Name", inv.ClientName),
				createSimpleElement("Country", inv.Country),
			},
		},
	)

	items := XMLElement{XMLName: xml.Name{Local: "Items"}}
	totalWithout, totalVAT := decimal.Zero, decimal.Zero
	for _, line := range inv.Lines {
		price := line.EffectivePrice()
		vat := line.VATAmount()
		totalWithout = totalWithout.Add(price)
		totalVAT = totalVAT.Add(vat)

		items.add(XMLElement{
			XMLName: xml.Name{Local: "Item"},
			Children: []XMLElement{
				createSimpleElement("Name", line.EffectiveName()),
				createSimpleElement("Quantity", "1"),
				createSimpleElement("UnitPrice", money(price)),
				createSimpleElement("VATRate", line.EffectiveVATRate().String()),
				createSimpleElement("VATAmount", money(vat)),
				createSimpleElement("TotalWithVAT", money(price.Add(vat))),
			},
		})
	}
	invoice.add(items)

	invoice.add(XMLElement{
		XMLName: xml.Name{Local: "Totals"},
		Children: []XMLElement{
			createSimpleElement("TotalWithoutVAT", money(totalWithout)),
			createSimpleElement("TotalVAT", money(totalVAT)),
			createSimpleElement("TotalWithVAT", money(totalWithout.Add(totalVAT))),
		},
	})
	return invoice
}

// =============================================================================
// XML STRUCTURES AND HELPERS
// =============================================================================

// XMLElement is a generic element with either a text value or children.
type XMLElement struct {
	XMLName    xml.Name
	Attributes []xml.Attr
	Value      string
	Children   []XMLElement
}

func (e *XMLElement) add(children ...XMLElement) {
	e.Children = append(e.Children, children...)
}

// createSimpleElement creates an element with a text value.
func createSimpleElement(name, value string) XMLElement {
	return XMLElement{XMLName: xml.Name{Local: name}, Value: value}
}

// money formats an amount with two decimals.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// writeElement writes an element and its children with indentation.
func writeElement(buffer *bytes.Buffer, element XMLElement, indent string, level int) {
	buffer.WriteString(strings.Repeat(indent, level))
	buffer.WriteString("<")
	buffer.WriteString(element.XMLName.Local)

	for _, attr := range element.Attributes {
		fmt.Fprintf(buffer, " %s=\"%s\"", attr.Name.Local, escapeXML(attr.Value))
	}

	if len(element.Children) == 0 && element.Value == "" {
		buffer.WriteString("/>\n")
		return
	}

	buffer.WriteString(">")
	if len(element.Children) == 0 {
		buffer.WriteString(escapeXML(element.Value))
	} else {
		buffer.WriteString("\n")
		for _, child := range element.Children {
			writeElement(buffer, child, indent, level+1)
		}
		buffer.WriteString(strings.Repeat(indent, level))
	}

	buffer.WriteString("</")
	buffer.WriteString(element.XMLName.Local)
	buffer.WriteString(">\n")
}

// escapeXML escapes the five XML special characters.
func escapeXML(s string) string {
	var buffer strings.Builder
	buffer.Grow(len(s))
	for _, r := range s {
		switch r {
		case '&':
			buffer.WriteString("&amp;")
		case '<':
			buffer.WriteString("&lt;")
		case '>':
			buffer.WriteString("&gt;")
		case '"':
			buffer.WriteString("&quot;")
		case '\'':
			buffer.WriteString("&apos;")
		default:
			buffer.WriteRune(r)
		}
	}
	return buffer.String()
}

func (r *Renderer) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}
