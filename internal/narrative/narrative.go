// Package narrative turns a dataset into a short strategy write-up through
// a text-generation runtime. It never fails: every problem becomes a
// placeholder string so the dataset can still be returned and cached.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/KaramelBytes/census-cli/internal/ai"
	"github.com/KaramelBytes/census-cli/internal/census"
	"github.com/KaramelBytes/census-cli/internal/utils"
)

// ErrorPrefix starts every placeholder narrative.
const ErrorPrefix = "Error generating analysis: "

const (
	DefaultMaxRows    = 25
	DefaultTokenLimit = 6000
)

const instructions = `Using the US Census demographic data below, which covers the national summary and the states that together hold about 80%% of the Hispanic population, give a high-level assessment of the Hispanic retail opportunity over the next 3 to 5 years for a large online retailer such as Amazon.

Focus on what it means for Spanish-language marketing, digital shopping behavior, and long-term brand strategy. Keep it strategic and forward-looking, written for senior retail and marketing leaders.

Population fields are head counts. USH_share is the Hispanic share of the 18-64 population and Spanish_18_64_%% is the Spanish-speaking share of it, both in percent.

%s`

// SummaryRow is the bounded per-region view sent to the model.
type SummaryRow struct {
	Name            string     `json:"NAME"`
	HispanicPop     census.Num `json:"Hispanic_Pop"`
	Pop18to64       census.Num `json:"Pop_18_64"`
	Hispanic18to64  census.Num `json:"USH_18_64"`
	Spanish18to64   census.Num `json:"Spanish_18_64"`
	HispanicShare   census.Num `json:"USH_share"`
	Spanish18to64Pc census.Num `json:"Spanish_18_64_%"`
}

// SummaryRows projects the dataset, national row first, keeping at most
// maxRows rows (0 means all).
func SummaryRows(ds census.Dataset, maxRows int) []SummaryRow {
	rows := ds.Rows
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	out := make([]SummaryRow, len(rows))
	for i, r := range rows {
		out[i] = SummaryRow{
			Name:            r.Name,
			HispanicPop:     r.Get(census.HispanicPop),
			Pop18to64:       r.Get(census.Pop18to64),
			Hispanic18to64:  r.Get(census.Hispanic18to64),
			Spanish18to64:   r.Get(census.Spanish18to64),
			HispanicShare:   r.Get(census.HispanicShare18to64),
			Spanish18to64Pc: r.Get(census.Spanish18to64Pct),
		}
	}
	return out
}

// BuildPrompt renders the instruction text around the summary rows.
func BuildPrompt(rows []SummaryRow) (string, error) {
	b, err := utils.PrettyJSON(rows)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(instructions, b), nil
}

// Options configures a Narrator. Zero values take defaults.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
	// PromptTokenLimit caps the estimated prompt size.
	PromptTokenLimit int
	MaxRows          int
	Logger           *slog.Logger
}

// Narrator produces the analysis text for a dataset.
type Narrator struct {
	rt  ai.Runtime
	opt Options
	log *slog.Logger
}

// New returns a Narrator. rt may be nil, in which case every narrative is
// a placeholder explaining that no runtime is configured.
func New(rt ai.Runtime, opt Options) *Narrator {
	if opt.MaxTokens <= 0 {
		opt.MaxTokens = ai.DefaultMaxTokens
	}
	if opt.PromptTokenLimit <= 0 {
		opt.PromptTokenLimit = DefaultTokenLimit
	}
	if opt.MaxRows <= 0 {
		opt.MaxRows = DefaultMaxRows
	}
	if mi, ok := ai.LookupModel(opt.Model); ok && mi.ContextTokens > 0 {
		if room := mi.ContextTokens - opt.MaxTokens; room > 0 && room < opt.PromptTokenLimit {
			opt.PromptTokenLimit = room
		}
	}
	log := opt.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Narrator{rt: rt, opt: opt, log: log}
}

// Narrate returns the model's analysis, or a placeholder beginning with
// ErrorPrefix. It never returns an error.
func (n *Narrator) Narrate(ctx context.Context, ds census.Dataset) string {
	text, err := n.generate(ctx, ds)
	if err != nil {
		n.log.Warn("narrative failed", "err", err)
		return Placeholder(err)
	}
	return text
}

// Placeholder formats err as a narrative.
func Placeholder(err error) string {
	return ErrorPrefix + err.Error()
}

// IsPlaceholder reports whether text is a failure placeholder.
func IsPlaceholder(text string) bool {
	return strings.HasPrefix(text, ErrorPrefix)
}

func (n *Narrator) generate(ctx context.Context, ds census.Dataset) (string, error) {
	if n == nil || n.rt == nil {
		return "", errors.New("no text-generation runtime configured")
	}
	if n.opt.Model == "" {
		return "", errors.New("no model configured")
	}
	if len(ds.Rows) == 0 {
		return "", errors.New("dataset is empty")
	}
	prompt, err := BuildPrompt(SummaryRows(ds, n.opt.MaxRows))
	if err != nil {
		return "", err
	}
	if utils.CountTokens(prompt) > n.opt.PromptTokenLimit {
		n.log.Warn("narrative prompt truncated", "limit", n.opt.PromptTokenLimit, "tokens", utils.CountTokens(prompt))
		prompt = utils.TruncateToTokenLimit(prompt, n.opt.PromptTokenLimit)
	}
	n.log.Debug("narrative request", "model", n.opt.Model, "rows", min(len(ds.Rows), n.opt.MaxRows), "tokens", utils.TokenBreakdown(map[string]string{"prompt": prompt}))

	resp, err := n.rt.Generate(ctx, ai.GenerateRequest{
		Model:       n.opt.Model,
		Messages:    []ai.Message{{Role: "user", Content: prompt}},
		MaxTokens:   n.opt.MaxTokens,
		Temperature: n.opt.Temperature,
	})
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("empty response from model")
	}
	n.log.Info("narrative generated", "model", n.opt.Model, "request_id", resp.RequestID, "completion_tokens", resp.Usage.CompletionTokens)
	return text, nil
}
