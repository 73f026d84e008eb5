package render

import (
	"bytes"
	"fmt"
	"strings"
)

// xsdField describes one simple element of the export schema.
type xsdField struct {
	Name      string
	Type      string
	MinOccurs int
}

// xsdComplex describes one element with a child sequence.
type xsdComplex struct {
	Name     string
	Fields   []xsdField
	Children []xsdChild
}

type xsdChild struct {
	Ref       string
	MinOccurs int
	Unbounded bool
}

// exportSchema mirrors the element tree written by ExportDocument.
var exportSchema = []xsdComplex{
	{
		Name: "Invoice",
		Fields: []xsdField{
			{"InvoiceNumber", "xs:string", 1},
			{"VariableSymbol", "xs:string", 1},
			{"IssuedDate", "xs:date", 1},
			{"TaxableFulfillmentDate", "xs:date", 1},
			{"DueDate", "xs:date", 1},
			{"Currency", "xs:string", 1},
		},
		Children: []xsdChild{{Ref: "Client", MinOccurs: 1}, {Ref: "Items", MinOccurs: 1}, {Ref: "Totals", MinOccurs: 1}},
	},
	{
		Name: "Client",
		Fields: []xsdField{
			{"ICO", "xs:string", 0},
			{"Name", "xs:string", 0},
			{"Country", "xs:string", 0},
		},
	},
	{
		Name:     "Items",
		Children: []xsdChild{{Ref: "Item", MinOccurs: 0, Unbounded: true}},
	},
	{
		Name: "Item",
		Fields: []xsdField{
			{"Name", "xs:string", 0},
			{"Quantity", "xs:decimal", 1},
			{"UnitPrice", "xs:decimal", 1},
			{"VATRate", "xs:decimal", 1},
			{"VATAmount", "xs:decimal", 1},
			{"TotalWithVAT", "xs:decimal", 1},
		},
	},
	{
		Name: "Totals",
		Fields: []xsdField{
			{"TotalWithoutVAT", "xs:decimal", 1},
			{"TotalVAT", "xs:decimal", 1},
			{"TotalWithVAT", "xs:decimal", 1},
		},
	},
}

// GenerateXSD returns the XML Schema of the export document for namespace.
// Empty means DefaultNamespace.
func GenerateXSD(namespace string) []byte {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	var buffer bytes.Buffer

	fmt.Fprintf(&buffer, `<?xml version="1.0" encoding="UTF-8"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" xmlns="%[1]s" targetNamespace="%[1]s" elementFormDefault="qualified">
  <xs:element name="Invoices">
    <xs:complexType>
      <xs:sequence>
        <xs:element ref="Invoice" minOccurs="0" maxOccurs="unbounded"/>
      </xs:sequence>
      <xs:attribute name="version" type="xs:string" use="required"/>
      <xs:attribute name="exportDate" type="xs:date" use="required"/>
    </xs:complexType>
  </xs:element>
`, escapeXML(namespace))

	for _, c := range exportSchema {
		writeXSDComplex(&buffer, c)
	}

	buffer.WriteString("</xs:schema>\n")
	return buffer.Bytes()
}

// writeXSDComplex writes one complex element definition.
func writeXSDComplex(buffer *bytes.Buffer, c xsdComplex) {
	fmt.Fprintf(buffer, "  <xs:element name=%q>\n    <xs:complexType>\n      <xs:sequence>\n", c.Name)
	indent := strings.Repeat("  ", 4)
	for _, f := range c.Fields {
		fmt.Fprintf(buffer, "%s<xs:element name=%q type=%q minOccurs=\"%d\"/>\n", indent, f.Name, f.Type, f.MinOccurs)
	}
	for _, ch := range c.Children {
		maxOccurs := ""
		if ch.Unbounded {
			maxOccurs = ` maxOccurs="unbounded"`
		}
		fmt.Fprintf(buffer, "%s<xs:element ref=%q minOccurs=\"%d\"%s/>\n", indent, ch.Ref, ch.MinOccurs, maxOccurs)
	}
	buffer.WriteString("      </xs:sequence>\n    </xs:complexType>\n  </xs:element>\n")
}
