package scrape

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkg/errors"
	"github.com/scrapedash/scrapedash"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// ImageURLDataType asks for image links, which needs the larger model
	// and the page's image sources.
	ImageURLDataType = "Image URL"

	// NoDataFound is what the model answers when nothing matches.
	NoDataFound = "No data found"

	extractorSystemPrompt  = `You are a datascraper that formats data with explicit \n characters for newlines. Never remove these characters.`
	summarizerSystemPrompt = "You are a summarization assistant."

	templateRows     = 3
	summaryMaxTokens = 1000

	// newline is the two character marker the model is asked to emit in
	// place of real line breaks.
	newline = `\n`
)

type chatCompleter interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Extractor asks a language model to pull keyword matches out of page text
// and to summarize results.
type Extractor struct {
	completions chatCompleter
}

// NewExtractor builds an extractor that uses the given HTTP client for
// model requests.
func NewExtractor(conf scrapedash.LLMConfig, client *http.Client) *Extractor {
	opts := []option.RequestOption{
		option.WithAPIKey(conf.APIKey),
		option.WithRequestTimeout(conf.Timeout()),
	}
	if conf.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(conf.BaseURL))
	}
	if client != nil {
		opts = append(opts, option.WithHTTPClient(client))
	}

	c := openai.NewClient(opts...)
	return &Extractor{completions: &c.Chat.Completions}
}

// Extraction is the model's answer to an extraction request.
type Extraction struct {
	Preview string
	Full    string
}

type extractionPlan struct {
	model     openai.ChatModel
	maxTokens int64
	matches   int
	images    bool
}

func planFor(dataTypes []string) extractionPlan {
	for _, dt := range dataTypes {
		if dt == ImageURLDataType {
			return extractionPlan{model: openai.ChatModelGPT4o, maxTokens: 8000, matches: 7, images: true}
		}
	}
	return extractionPlan{model: openai.ChatModelGPT4oMini, maxTokens: 6000, matches: 20}
}

// FormatTemplate renders the example output the model has to follow. Line
// breaks are written as literal \n markers.
func FormatTemplate(format string, keywords []string) (string, error) {
	values := make([]string, 0, len(keywords))
	for i := range keywords {
		values = append(values, fmt.Sprintf("[value%d]", i+1))
	}

	switch format {
	case scrapedash.OutputFormatJSON:
		rows := make([]string, 0, templateRows)
		for i := 0; i < templateRows; i++ {
			fields := make([]string, 0, len(keywords))
			for _, kw := range keywords {
				fields = append(fields, fmt.Sprintf(`        "%s": "[value%d]"`, kw, i+1))
			}
			rows = append(rows, "    {"+newline+strings.Join(fields, ","+newline)+newline+"    }")
		}
		return "{" + newline + strings.Join(rows, ","+newline) + newline + "}", nil
	case scrapedash.OutputFormatCSV:
		return strings.Join(keywords, ",") + newline + strings.Join(values, ",") + newline, nil
	case scrapedash.OutputFormatMarkdown:
		return "| " + strings.Join(keywords, " | ") + " |" + newline +
			strings.Repeat("|------", len(keywords)) + "|" + newline +
			"| " + strings.Join(values, " | ") + " |" + newline, nil
	default:
		return "", errors.Errorf("unsupported output format '%s'", format)
	}
}

func buildPrompt(req Request, page *Page, template string, plan extractionPlan) string {
	prompt := fmt.Sprintf(`Task Name: %s
The task name provided by me sometimes are made up randomly which can be unrelated to the keywords and data.
From the data below, extract %d matches for keywords: [%s] in matching [%s] order.
Format the output exactly as shown below, including all \n characters for newlines:

%s

Use the %s format and include all \n characters exactly as shown.
In your response, do not include any other text, including the word "%s:" and '''.
Only if there is no relevant data, return '%s'.
Data: %s`,
		req.TaskName, plan.matches, strings.Join(req.Keywords, ", "), strings.Join(req.DataTypes, ", "),
		template, req.OutputFormat, req.OutputFormat, NoDataFound, page.Text)

	if plan.images {
		prompt += "\nImage URLs: " + strings.Join(page.Images, "\n")
	}
	return prompt
}

// PreviewOf shortens a full response to its first few records.
func PreviewOf(response, format string) string {
	if response == NoDataFound || response == NoDataFound+"." {
		return response
	}

	switch format {
	case scrapedash.OutputFormatJSON:
		const sep = "}," + newline + "    {"
		parts := strings.Split(response, sep)
		return strings.Join(parts[:min(len(parts), 3)], sep) + "}" + newline + "}"
	case scrapedash.OutputFormatCSV:
		parts := strings.Split(response, newline)
		return strings.Join(parts[:min(len(parts), 4)], newline)
	case scrapedash.OutputFormatMarkdown:
		parts := strings.Split(response, newline)
		return strings.Join(parts[:min(len(parts), 5)], newline)
	default:
		return response
	}
}

// Extract asks the model for the matches described by req in page.
func (e *Extractor) Extract(ctx context.Context, req Request, page *Page) (*Extraction, error) {
	template, err := FormatTemplate(req.OutputFormat, req.Keywords)
	if err != nil {
		return nil, err
	}
	plan := planFor(req.DataTypes)

	ctx, span := tracer.Start(ctx, "extract", trace.WithAttributes(
		attribute.String(modelAttribute, string(plan.model)),
		attribute.String(outputFormatAttribute, req.OutputFormat),
	))
	defer span.End()

	full, err := e.complete(ctx, plan.model, plan.maxTokens, extractorSystemPrompt, buildPrompt(req, page, template, plan))
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "extracting matches")
	}

	return &Extraction{Preview: PreviewOf(full, req.OutputFormat), Full: full}, nil
}

// Summarize condenses a full extraction result into one short paragraph.
func (e *Extractor) Summarize(ctx context.Context, full string) (string, error) {
	if strings.TrimSpace(full) == "" {
		return "", errors.New("nothing to summarize")
	}

	ctx, span := tracer.Start(ctx, "summarize", trace.WithAttributes(
		attribute.String(modelAttribute, string(openai.ChatModelGPT4oMini)),
	))
	defer span.End()

	prompt := "Summarize the following scraped data into one paragraph with less than 200 words:\n" + full
	summary, err := e.complete(ctx, openai.ChatModelGPT4oMini, summaryMaxTokens, summarizerSystemPrompt, prompt)
	if err != nil {
		span.RecordError(err)
		return "", errors.Wrap(err, "summarizing result")
	}
	return summary, nil
}

func (e *Extractor) complete(ctx context.Context, model openai.ChatModel, maxTokens int64, system, prompt string) (string, error) {
	completion, err := e.completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     model,
		MaxTokens: openai.Int(maxTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "requesting chat completion")
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}

	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}
