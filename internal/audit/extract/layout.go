package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// FieldLayout locates one metadata value and, optionally, the label printed
// next to it.
type FieldLayout struct {
	Cell      string `yaml:"cell"`
	LabelCell string `yaml:"label_cell,omitempty"`
	Label     string `yaml:"label,omitempty"`
}

// MetadataLayout holds the fixed positions of the header block.
type MetadataLayout struct {
	CompanyName        FieldLayout `yaml:"company_name"`
	ExternalIdentifier FieldLayout `yaml:"external_identifier"`
	ReferenceStandard  FieldLayout `yaml:"reference_standard"`
	AuditType          FieldLayout `yaml:"audit_type"`
	AuditDate          FieldLayout `yaml:"audit_date"`
}

// Layout describes where an action plan keeps its metadata and findings.
type Layout struct {
	Metadata     MetadataLayout `yaml:"metadata"`
	HeaderRow    int            `yaml:"header_row"`
	DataStartRow int            `yaml:"data_start_row"`
}

// DefaultLayout matches the standard action-plan template.
func DefaultLayout() Layout {
	return Layout{
		Metadata: MetadataLayout{
			CompanyName:        FieldLayout{Cell: "C4", LabelCell: "B4", Label: "Nom de l'entreprise"},
			ExternalIdentifier: FieldLayout{Cell: "C5", LabelCell: "B5", Label: "COID"},
			ReferenceStandard:  FieldLayout{Cell: "C7", LabelCell: "B7", Label: "Référentiel"},
			AuditType:          FieldLayout{Cell: "C8", LabelCell: "B8", Label: "Type d'audit"},
			AuditDate:          FieldLayout{Cell: "C9", LabelCell: "B9", Label: "Date d'audit"},
		},
		HeaderRow:    12,
		DataStartRow: 14,
	}
}

// LoadLayout reads a YAML layout file over the defaults. An empty path returns
// DefaultLayout.
func LoadLayout(path string) (Layout, error) {
	if path == "" {
		return DefaultLayout(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("read layout file: %w", err)
	}
	return ParseLayout(data)
}

// ParseLayout decodes YAML over the defaults and validates the result.
// Unknown keys are rejected.
func ParseLayout(data []byte) (Layout, error) {
	l := DefaultLayout()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&l); err != nil && !errors.Is(err, io.EOF) {
		return Layout{}, fmt.Errorf("decode layout: %w", err)
	}
	if err := l.Validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// Validate checks cell references and row numbers.
func (l Layout) Validate() error {
	for _, f := range l.Metadata.fields() {
		if _, _, err := excelize.CellNameToCoordinates(f.layout.Cell); err != nil {
			return fmt.Errorf("layout %s cell %q: %w", f.name, f.layout.Cell, err)
		}
		if f.layout.LabelCell != "" {
			if _, _, err := excelize.CellNameToCoordinates(f.layout.LabelCell); err != nil {
				return fmt.Errorf("layout %s label_cell %q: %w", f.name, f.layout.LabelCell, err)
			}
		}
	}
	if l.HeaderRow < 1 {
		return fmt.Errorf("layout header_row must be positive, got %d", l.HeaderRow)
	}
	if l.DataStartRow <= l.HeaderRow {
		return fmt.Errorf("layout data_start_row (%d) must follow header_row (%d)", l.DataStartRow, l.HeaderRow)
	}
	return nil
}

type namedField struct {
	name   string
	layout FieldLayout
}

func (m MetadataLayout) fields() []namedField {
	return []namedField{
		{"company_name", m.CompanyName},
		{"external_identifier", m.ExternalIdentifier},
		{"reference_standard", m.ReferenceStandard},
		{"audit_type", m.AuditType},
		{"audit_date", m.AuditDate},
	}
}

// VerifyLabels checks that every field declaring a label finds it in its label
// cell. Comparison ignores case, accents, surrounding blanks and a trailing
// colon.
func VerifyLabels(sheet Sheet, layout MetadataLayout) error {
	for _, f := range layout.fields() {
		if f.layout.LabelCell == "" || f.layout.Label == "" {
			continue
		}
		v, err := readCell(sheet, f.layout.LabelCell)
		if err != nil {
			return stageErr(StageMetadata, f.name, err)
		}
		got, _ := NormalizeScalar(v)
		if foldLabel(got) != foldLabel(f.layout.Label) {
			return stageErr(StageMetadata, f.name,
				fmt.Errorf("%w: %s expected %q, found %q", ErrLayoutMismatch, f.layout.LabelCell, f.layout.Label, got))
		}
	}
	return nil
}

func foldLabel(s string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(strings.Join(strings.Fields(folded), " "))
	return strings.TrimSpace(strings.TrimSuffix(folded, ":"))
}
