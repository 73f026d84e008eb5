package fields

import (
	"maps"
	"slices"
)

// Field names a semantic column of the licence ledger.
type Field string

const (
	ExternalID         Field = "externalId"
	TaxID              Field = "taxId"
	MunicipalityCode   Field = "municipalityCode"
	ClientName         Field = "clientName"
	District           Field = "district"
	Region             Field = "region"
	Country            Field = "country"
	Population         Field = "population"
	ClientType         Field = "clientType"
	Consultant         Field = "consultant"
	ActivityType       Field = "activityType"
	Service            Field = "service"
	BillingInterval    Field = "billingInterval"
	Commitment         Field = "commitment"
	OrderAmount        Field = "orderAmount"
	BillableAmount     Field = "billableAmount"
	ActivationDate     Field = "activationDate"
	PeriodEndDate      Field = "periodEndDate"
	TerminationDate    Field = "terminationDate"
	LicenceStartMonth  Field = "licenceStartMonth"
	Invoiced           Field = "invoiced"
	BillingMonth       Field = "billingMonth"
	VATLiable          Field = "vatLiable"
	Note               Field = "note"
	ContinuationResult Field = "continuationResult"
	AutoRenewal        Field = "autoRenewal"
)

// Matcher maps one semantic field to the header fragments that identify it.
// Fragments are compared after Fold, so they are written without diacritics.
type Matcher struct {
	Field      Field
	Candidates []string

	// Exact requires the folded header to equal a candidate instead of
	// containing it. Used for short labels such as "ID".
	Exact bool
}

// DefaultTable covers the Czech and Slovak header variants seen in ledger
// exports. New variants are added here, never in the ingestion code.
var DefaultTable = []Matcher{
	{Field: ExternalID, Candidates: []string{"id"}, Exact: true},
	{Field: TaxID, Candidates: []string{"ico", "registration"}},
	{Field: MunicipalityCode, Candidates: []string{"kod obce"}},
	{Field: ClientName, Candidates: []string{"nazov klienta", "nazev klienta", "client name"}},
	{Field: District, Candidates: []string{"okres"}},
	{Field: Region, Candidates: []string{"kraj"}},
	{Field: Country, Candidates: []string{"stat", "country"}},
	{Field: Population, Candidates: []string{"pocet obyvatel"}},
	{Field: ClientType, Candidates: []string{"typ klienta"}},
	{Field: Consultant, Candidates: []string{"konzultant"}},
	{Field: ActivityType, Candidates: []string{"typ cinnosti"}},
	{Field: Service, Candidates: []string{"zakoupena sluzba", "zakupena sluzba", "sluzba"}},
	{Field: BillingInterval, Candidates: []string{"interval platby"}},
	{Field: Commitment, Candidates: []string{"vazanost"}},
	{Field: OrderAmount, Candidates: []string{"hodnota objednavky"}},
	{Field: BillableAmount, Candidates: []string{"fakturovana hodnota"}},
	{Field: ActivationDate, Candidates: []string{"datum aktivace", "datum aktivacie"}},
	{Field: PeriodEndDate, Candidates: []string{"konca fakturac", "konce fakturac", "konec fakturac"}},
	{Field: TerminationDate, Candidates: []string{"datum ukoncen"}},
	{Field: LicenceStartMonth, Candidates: []string{"zaciatku licenc", "zacatku licenc"}},
	{Field: Invoiced, Candidates: []string{"vyfakturovan"}},
	{Field: BillingMonth, Candidates: []string{"mesic fakturace", "mesiac fakturacie"}},
	{Field: VATLiable, Candidates: []string{"platce dph", "platca dph"}},
	{Field: Note, Candidates: []string{"poznamka"}},
	{Field: ContinuationResult, Candidates: []string{"vysledek pokracovani", "vysledok pokracovania"}},
	{Field: AutoRenewal, Candidates: []string{"autoprolong"}},
}

// WithExtra returns a copy of table where each field in extra gets the
// additional fragments appended after its built-in ones. Fields that are not
// in table are added at the end.
func WithExtra(table []Matcher, extra map[Field][]string) []Matcher {
	out := make([]Matcher, 0, len(table)+len(extra))
	seen := make(map[Field]bool, len(table))
	for _, m := range table {
		m.Candidates = append(append([]string(nil), m.Candidates...), extra[m.Field]...)
		out = append(out, m)
		seen[m.Field] = true
	}
	for _, field := range slices.Sorted(maps.Keys(extra)) {
		if !seen[field] {
			out = append(out, Matcher{Field: field, Candidates: extra[field]})
		}
	}
	return out
}
