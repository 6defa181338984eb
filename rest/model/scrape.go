package model

import (
	"strings"

	"github.com/scrapedash/scrapedash/scrape"
)

// APIPreviewRequest asks for a one-off extraction from a page before a task
// is saved.
type APIPreviewRequest struct {
	TaskName     string   `json:"taskName"`
	SourceURL    string   `json:"sourceURL"`
	Keywords     []string `json:"keywords"`
	OutputFormat string   `json:"outputFormat"`
	DataTypes    []string `json:"dataTypes"`
}

// ToService returns the scrape request with the source URL trimmed, so the
// URL that is fetched is the one that was validated.
func (r *APIPreviewRequest) ToService() scrape.Request {
	return scrape.Request{
		TaskName:     r.TaskName,
		SourceURL:    strings.TrimSpace(r.SourceURL),
		Keywords:     r.Keywords,
		DataTypes:    r.DataTypes,
		OutputFormat: r.OutputFormat,
	}
}

// APIPreviewResponse carries the truncated preview and the full model answer.
type APIPreviewResponse struct {
	Message         string   `json:"message"`
	CleanedText     string   `json:"cleaned_text"`
	Keywords        []string `json:"keywords"`
	DataTypes       []string `json:"dataTypes"`
	GPTResponse     string   `json:"gpt_response"`
	GPTFullResponse string   `json:"gpt_full_response"`
	OutputFormat    string   `json:"outputFormat"`
}

func (r *APIPreviewResponse) BuildFromService(in scrape.Result) {
	r.Message = in.Message
	r.CleanedText = in.CleanedText
	r.Keywords = in.Keywords
	r.DataTypes = in.DataTypes
	r.GPTResponse = in.Preview
	r.GPTFullResponse = in.FullResponse
	r.OutputFormat = in.OutputFormat
}

// APISummaryRequest asks for a task's result to be summarized. When the task
// details carry a definition, it replaces the stored one first.
type APISummaryRequest struct {
	TaskDetails *APITask `json:"TaskDetails"`
}
