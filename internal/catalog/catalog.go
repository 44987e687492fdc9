package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"

	"basegraph.app/advflag/internal/model"
)

//go:embed catalog.yaml
var builtin []byte

var (
	ErrFlagTypeNotFound = errors.New("flag type not found")
	ErrInvalidCatalog   = errors.New("invalid catalog")
)

// feedback keys used in the YAML document
var reporterKeys = map[string]model.ReporterKind{
	"smokey":      model.ReporterExternalID,
	"guttenberg":  model.ReporterOrigin,
	"natty":       model.ReporterAge,
	"generic_bot": model.ReporterGeneric,
}

type document struct {
	LowRepThreshold int                `yaml:"low_rep_threshold"`
	Categories      []categoryDocument `yaml:"categories"`
}

type categoryDocument struct {
	Name      string             `yaml:"name"`
	AppliesTo []model.PostType   `yaml:"applies_to"`
	Dangerous bool               `yaml:"dangerous"`
	FlagTypes []flagTypeDocument `yaml:"flag_types"`
}

type flagTypeDocument struct {
	ID         int                    `yaml:"id"`
	Name       string                 `yaml:"name"`
	ReportKind model.ReportKind       `yaml:"report_kind"`
	Rule       model.EligibilityRule  `yaml:"rule"`
	Comments   model.CommentTemplates `yaml:"comments"`
	FlagText   string                 `yaml:"flag_text"`
	Feedbacks  map[string]string      `yaml:"feedbacks"`
}

type commentData struct {
	Reputation int
	AuthorName string
}

type flagTextData struct {
	TargetURL  string
	ExternalID int64
}

type compiled struct {
	lowRep   *template.Template
	highRep  *template.Template
	flagText *template.Template
}

// Catalog is the immutable flag taxonomy. Every accessor hands out copies, so a
// flag type's report kind cannot change after Load.
type Catalog struct {
	categories      []model.FlagCategory
	byID            map[int]model.FlagType
	templates       map[int]compiled
	lowRepThreshold int
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := Load(builtin)
	if err != nil {
		panic(fmt.Sprintf("loading built-in flag catalog: %v", err))
	}
	return c
})

// Default returns the built-in catalog, parsed once per process.
func Default() *Catalog {
	return defaultCatalog()
}

// Load parses and validates a catalog document.
func Load(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if doc.LowRepThreshold <= 0 {
		doc.LowRepThreshold = 50
	}

	c := &Catalog{
		byID:            make(map[int]model.FlagType),
		templates:       make(map[int]compiled),
		lowRepThreshold: doc.LowRepThreshold,
	}

	for _, cd := range doc.Categories {
		if cd.Name == "" {
			return nil, fmt.Errorf("%w: category without name", ErrInvalidCatalog)
		}
		for _, pt := range cd.AppliesTo {
			if !pt.Valid() {
				return nil, fmt.Errorf("%w: category %q applies to unknown post type %q", ErrInvalidCatalog, cd.Name, pt)
			}
		}

		category := model.FlagCategory{
			Name:        cd.Name,
			AppliesTo:   cd.AppliesTo,
			IsDangerous: cd.Dangerous,
		}
		for _, fd := range cd.FlagTypes {
			ft, tmpl, err := buildFlagType(fd)
			if err != nil {
				return nil, err
			}
			if _, dup := c.byID[ft.ID]; dup {
				return nil, fmt.Errorf("%w: duplicate flag type id %d", ErrInvalidCatalog, ft.ID)
			}
			c.byID[ft.ID] = ft
			c.templates[ft.ID] = tmpl
			category.FlagTypes = append(category.FlagTypes, ft)
		}
		c.categories = append(c.categories, category)
	}

	return c, nil
}

func buildFlagType(fd flagTypeDocument) (model.FlagType, compiled, error) {
	if fd.ID <= 0 {
		return model.FlagType{}, compiled{}, fmt.Errorf("%w: flag type %q has no id", ErrInvalidCatalog, fd.Name)
	}
	if !fd.ReportKind.Valid() {
		return model.FlagType{}, compiled{}, fmt.Errorf("%w: flag type %d has unknown report kind %q", ErrInvalidCatalog, fd.ID, fd.ReportKind)
	}
	if !fd.Rule.Valid() {
		return model.FlagType{}, compiled{}, fmt.Errorf("%w: flag type %d has unknown rule %q", ErrInvalidCatalog, fd.ID, fd.Rule)
	}
	rule := fd.Rule
	if rule == "" {
		rule = model.RuleAlways
	}

	feedbacks := make(map[model.ReporterKind]string, len(fd.Feedbacks))
	for key, value := range fd.Feedbacks {
		kind, ok := reporterKeys[key]
		if !ok {
			return model.FlagType{}, compiled{}, fmt.Errorf("%w: flag type %d has feedback for unknown reporter %q", ErrInvalidCatalog, fd.ID, key)
		}
		feedbacks[kind] = value
	}

	var (
		tmpl compiled
		err  error
	)
	name := fmt.Sprintf("flag-%d", fd.ID)
	if tmpl.lowRep, err = parse(name+"-low", fd.Comments.LowRep); err != nil {
		return model.FlagType{}, compiled{}, err
	}
	if tmpl.highRep, err = parse(name+"-high", fd.Comments.HighRep); err != nil {
		return model.FlagType{}, compiled{}, err
	}
	if tmpl.flagText, err = parse(name+"-text", fd.FlagText); err != nil {
		return model.FlagType{}, compiled{}, err
	}

	return model.FlagType{
		ID:          fd.ID,
		DisplayName: fd.Name,
		ReportKind:  fd.ReportKind,
		Rule:        rule,
		Comments:    fd.Comments,
		FlagText:    fd.FlagText,
		Feedbacks:   feedbacks,
	}, tmpl, nil
}

func parse(name, text string) (*template.Template, error) {
	if text == "" {
		return nil, nil
	}
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: template %s: %w", ErrInvalidCatalog, name, err)
	}
	return t, nil
}

// Categories returns the categories in display order.
func (c *Catalog) Categories() []model.FlagCategory {
	out := make([]model.FlagCategory, len(c.categories))
	for i, cat := range c.categories {
		cat.AppliesTo = append([]model.PostType(nil), cat.AppliesTo...)
		types := make([]model.FlagType, len(cat.FlagTypes))
		for j, ft := range cat.FlagTypes {
			types[j] = clone(ft)
		}
		cat.FlagTypes = types
		out[i] = cat
	}
	return out
}

func (c *Catalog) Find(id int) (model.FlagType, error) {
	ft, ok := c.byID[id]
	if !ok {
		return model.FlagType{}, fmt.Errorf("%w: %d", ErrFlagTypeNotFound, id)
	}
	return clone(ft), nil
}

// ByReportKind returns the first flag type, in catalog order, with the given kind.
func (c *Catalog) ByReportKind(kind model.ReportKind) (model.FlagType, bool) {
	for _, cat := range c.categories {
		for _, ft := range cat.FlagTypes {
			if ft.ReportKind == kind {
				return clone(ft), true
			}
		}
	}
	return model.FlagType{}, false
}

// AllIDs is the default enabled set.
func (c *Catalog) AllIDs() []int {
	var ids []int
	for _, cat := range c.categories {
		for _, ft := range cat.FlagTypes {
			ids = append(ids, ft.ID)
		}
	}
	return ids
}

// NotAnAnswer is the type used when a delete vote is observed in review.
// It is the second type of the third category.
func (c *Catalog) NotAnAnswer() (model.FlagType, error) {
	if len(c.categories) < 3 || len(c.categories[2].FlagTypes) < 2 {
		return model.FlagType{}, fmt.Errorf("%w: not-an-answer type", ErrFlagTypeNotFound)
	}
	return clone(c.categories[2].FlagTypes[1]), nil
}

// RenderComment renders the canned comment for the author. It returns "" when the
// flag type has no comment.
func (c *Catalog) RenderComment(flagTypeID, reputation int, authorName string) (string, error) {
	tmpl, ok := c.templates[flagTypeID]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrFlagTypeNotFound, flagTypeID)
	}
	t := tmpl.lowRep
	if reputation >= c.lowRepThreshold && tmpl.highRep != nil {
		t = tmpl.highRep
	}
	return execute(t, commentData{Reputation: reputation, AuthorName: authorName})
}

// RenderFlagText renders the custom moderator flag text. It returns "" when the
// flag type has none.
func (c *Catalog) RenderFlagText(flagTypeID int, targetURL string, externalID int64) (string, error) {
	tmpl, ok := c.templates[flagTypeID]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrFlagTypeNotFound, flagTypeID)
	}
	return execute(tmpl.flagText, flagTextData{TargetURL: targetURL, ExternalID: externalID})
}

func execute(t *template.Template, data any) (string, error) {
	if t == nil {
		return "", nil
	}
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", t.Name(), err)
	}
	return sb.String(), nil
}

func clone(ft model.FlagType) model.FlagType {
	ft.Feedbacks = maps.Clone(ft.Feedbacks)
	return ft
}
