package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerHeaders() []string {
	return []string{
		"ID", "IČO", "Kód obce", "Názov klienta", "Okres", "Kraj", "Štát",
		"Počet obyvatel / zamestnancov", "Typ klienta", "Konzultant", "Typ činnosti",
		"Zakoupená služba", "Interval platby (v rokoch)", "Väzanost\n(počet let)",
		"Hodnota objednávky", "Fakturovaná hodnota", "Datum aktivace",
		"Datum konca fakturačného obdobia", "Datum ukončenia", "Mesiac začiatku licencie",
		"Vyfakturováno", "Měsíc fakturace (typicky používáme první den měsíce)",
		"Platce DPH (ano/ne)", "Poznámka\nk fakturaci", "Výsledek pokračování", "Autoprolongace",
	}
}

func TestFold(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"IČO", "ico"},
		{"Väzanost\n(počet let)", "vazanost (pocet let)"},
		{"  Fakturovaná   hodnota ", "fakturovana hodnota"},
		{"ŠTÁT", "stat"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Fold(tt.in), "Fold(%q)", tt.in)
	}
}

func TestResolve(t *testing.T) {
	row := Row{
		{Header: "Názov klienta", Value: "Obec Lhota"},
		{Header: "IČO", Value: "123 456"},
		{Header: "Fakturovaná hodnota", Value: ""},
		{Header: "Hodnota objednávky", Value: 1500.0},
	}

	v, ok := Resolve(row, []string{"ico"})
	require.True(t, ok)
	assert.Equal(t, "123 456", v)

	v, ok = Resolve(row, []string{"NÁZEV KLIENTA", "názov klienta"})
	require.True(t, ok)
	assert.Equal(t, "Obec Lhota", v)

	_, ok = Resolve(row, []string{"fakturovana hodnota"})
	assert.False(t, ok, "empty matched cell resolves to absent")

	_, ok = Resolve(row, []string{"konzultant"})
	assert.False(t, ok)
}

func TestResolveFirstHeaderInRowOrderWins(t *testing.T) {
	row := Row{
		{Header: "Fakturovaná hodnota (stará)", Value: "10"},
		{Header: "Fakturovaná hodnota", Value: "20"},
	}
	v, ok := Resolve(row, []string{"fakturovana hodnota"})
	require.True(t, ok)
	assert.Equal(t, "10", v)
}

func TestResolverBindDefaultTableIsUnambiguous(t *testing.T) {
	r := NewResolver(DefaultTable, PolicyStrict)
	bound, err := r.Bind(ledgerHeaders())
	require.NoError(t, err)

	for _, m := range DefaultTable {
		assert.Len(t, bound[m.Field], 1, "field %s", m.Field)
	}
	assert.Equal(t, []string{"Fakturovaná hodnota"}, bound[BillableAmount])
	assert.Equal(t, []string{"ID"}, bound[ExternalID])
}

func TestResolverBindStrictAmbiguity(t *testing.T) {
	headers := append(ledgerHeaders(), "Fakturovaná hodnota EUR")

	_, err := NewResolver(DefaultTable, PolicyFirstMatch).Bind(headers)
	require.NoError(t, err)

	_, err = NewResolver(DefaultTable, PolicyStrict).Bind(headers)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAmbiguousHeader)

	var amb *AmbiguityError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, BillableAmount, amb.Field)
	assert.Equal(t, []string{"Fakturovaná hodnota", "Fakturovaná hodnota EUR"}, amb.Headers)
}

func TestResolverLookupExact(t *testing.T) {
	r := NewResolver(DefaultTable, PolicyFirstMatch)
	row := Row{
		{Header: "Identifikátor", Value: "nope"},
		{Header: "ID", Value: "42"},
	}
	v, ok := r.Lookup(row, ExternalID)
	require.True(t, ok)
	assert.Equal(t, "42", v)

	_, ok = r.Lookup(row, Field("unknown"))
	assert.False(t, ok)
}

func TestWithExtra(t *testing.T) {
	table := WithExtra(DefaultTable, map[Field][]string{
		BillableAmount:  {"billed value"},
		Field("custom"): {"vlastni"},
	})
	r := NewResolver(table, PolicyFirstMatch)

	v, ok := r.Lookup(Row{{Header: "Billed Value", Value: "7"}}, BillableAmount)
	require.True(t, ok)
	assert.Equal(t, "7", v)

	v, ok = r.Lookup(Row{{Header: "Vlastní pole", Value: "x"}}, Field("custom"))
	require.True(t, ok)
	assert.Equal(t, "x", v)

	// the shared default table is untouched
	assert.Equal(t, []string{"fakturovana hodnota"}, DefaultTable[15].Candidates)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyFirstMatch, p)

	p, err = ParsePolicy("Strict")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)

	_, err = ParsePolicy("loose")
	assert.Error(t, err)
}

func TestRowIsEmpty(t *testing.T) {
	assert.True(t, Row{{Header: "a"}, {Header: "b", Value: "  "}}.IsEmpty())
	assert.False(t, Row{{Header: "a", Value: 0}}.IsEmpty())
}

func TestBuildRows(t *testing.T) {
	rows := BuildRows(
		[]string{" IČO ", "", "Názov klienta"},
		[][]string{
			{"123", "x", " Obec "},
			{"", "  ", ""},
			{"456"},
		},
	)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"IČO", "Column_2", "Názov klienta"}, rows[0].Headers())
	assert.Equal(t, "Obec", rows[0][2].Value)
	assert.Nil(t, rows[1][1].Value, "short lines are padded with empty cells")
	assert.Nil(t, rows[1][2].Value)
}
