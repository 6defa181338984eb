package task

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"github.com/scrapedash/scrapedash/util"
)

const (
	// ResultOutputName names the output that holds the full extraction result.
	ResultOutputName = "result"
	// SummaryOutputName names the output that holds the summary of the result.
	SummaryOutputName = "summary"
)

type Source struct {
	Type scrapedash.SourceType `json:"type"`
	URL  string                `json:"url"`
}

type Target struct {
	Type  scrapedash.TargetType `json:"type"`
	Name  string                `json:"name,omitempty"`
	Value string                `json:"value"`
}

type Output struct {
	Type  scrapedash.OutputType `json:"type"`
	Name  string                `json:"name,omitempty"`
	Value string                `json:"value"`
}

// Definition describes what a task scrapes, what it looks for, and how the
// results are formatted.
type Definition struct {
	Type   scrapedash.TaskRunType `json:"type"`
	Source []Source               `json:"source"`
	Target []Target               `json:"target"`
	Output []Output               `json:"output"`
	Period scrapedash.TaskPeriod  `json:"period"`
}

// ParseDefinition decodes a JSON task definition.
func ParseDefinition(raw string) (*Definition, error) {
	if util.IsBlank(raw) {
		return nil, errors.New("task definition is empty")
	}
	def := &Definition{}
	if err := json.Unmarshal([]byte(raw), def); err != nil {
		return nil, errors.Wrap(err, "parsing task definition")
	}
	return def, nil
}

// String renders the definition as JSON.
func (d *Definition) String() string {
	out, err := json.Marshal(d)
	if err != nil {
		return ""
	}
	return string(out)
}

// Validate checks that the definition can be run.
func (d *Definition) Validate() error {
	catcher := grip.NewBasicCatcher()

	urls := 0
	for i, src := range d.Source {
		if src.Type != scrapedash.SourceTypeUrl {
			catcher.Errorf("source %d has unsupported type %d", i, src.Type)
			continue
		}
		u, err := url.Parse(src.URL)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			catcher.Errorf("source %d has invalid URL '%s'", i, src.URL)
			continue
		}
		urls++
	}
	catcher.NewWhen(urls == 0, "task must have at least one URL source")

	keywords := 0
	for _, t := range d.Target {
		if !util.IsBlank(t.Value) {
			keywords++
		}
	}
	catcher.NewWhen(keywords == 0, "task must have at least one keyword target")

	formats := 0
	for i, o := range d.Output {
		switch o.Type {
		case scrapedash.OutputTypeJson, scrapedash.OutputTypeCsv, scrapedash.OutputTypeMarkdown:
			formats++
		case scrapedash.OutputTypeGpt:
		default:
			catcher.Errorf("output %d has unknown type %d", i, o.Type)
		}
	}
	catcher.NewWhen(formats == 0, "task must have a JSON, CSV or MARKDOWN output")

	if d.Period < scrapedash.TaskPeriodSingle || d.Period > scrapedash.TaskPeriodMonthly {
		catcher.Errorf("invalid task period %d", d.Period)
	}

	return catcher.Resolve()
}

// SourceURL returns the first URL source.
func (d *Definition) SourceURL() string {
	for _, src := range d.Source {
		if src.Type == scrapedash.SourceTypeUrl {
			return src.URL
		}
	}
	return ""
}

// Keywords returns the non-empty target values.
func (d *Definition) Keywords() []string {
	out := []string{}
	for _, t := range d.Target {
		if v := strings.TrimSpace(t.Value); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// DataTypes returns the target names, which carry the requested data types.
func (d *Definition) DataTypes() []string {
	out := []string{}
	for _, t := range d.Target {
		if t.Name != "" {
			out = append(out, t.Name)
		}
	}
	return out
}

// OutputFormat returns the format of the first formatted output.
func (d *Definition) OutputFormat() string {
	for _, o := range d.Output {
		if f := o.Type.Format(); f != "" && o.Type != scrapedash.OutputTypeGpt {
			return f
		}
	}
	return ""
}

// FindOutput returns the output with the given name, or nil.
func (d *Definition) FindOutput(name string) *Output {
	for i := range d.Output {
		if d.Output[i].Name == name {
			return &d.Output[i]
		}
	}
	return nil
}

// SetOutput replaces the value of the named GPT output, adding it if the
// definition doesn't have one yet.
func (d *Definition) SetOutput(name, value string) {
	if o := d.FindOutput(name); o != nil {
		o.Value = value
		return
	}
	d.Output = append(d.Output, Output{Type: scrapedash.OutputTypeGpt, Name: name, Value: value})
}

// ResultText returns the text to summarize: the "result" output, or the
// second output for definitions written before results were named.
func (d *Definition) ResultText() (string, error) {
	if o := d.FindOutput(ResultOutputName); o != nil {
		return o.Value, nil
	}
	if len(d.Output) > 1 {
		return d.Output[1].Value, nil
	}
	return "", errors.New("task has no result to summarize")
}
