package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wastewise/disposal-assistant/internal/core/domain"
	"github.com/wastewise/disposal-assistant/internal/core/ports"
)

const defaultMaxSubQueries = 4

// QueryExpander turns one query into 1..M sub-queries via the generation
// capability. The first sub-query is always the verbatim original, and any
// generator failure degrades to that single-element list, so downstream
// retrieval always receives at least one sub-query.
type QueryExpander struct {
	generator     ports.TextGenerator
	maxSubQueries int
	timeout       time.Duration
	logger        *slog.Logger
}

func NewQueryExpander(generator ports.TextGenerator, maxSubQueries int, timeout time.Duration, logger *slog.Logger) *QueryExpander {
	if maxSubQueries <= 0 {
		maxSubQueries = defaultMaxSubQueries
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryExpander{
		generator:     generator,
		maxSubQueries: maxSubQueries,
		timeout:       timeout,
		logger:        logger,
	}
}

func (e *QueryExpander) Expand(ctx context.Context, query domain.Query) []domain.SubQuery {
	out := make([]domain.SubQuery, 0, e.maxSubQueries)
	out = append(out, domain.SubQuery{
		Text:       query.Text,
		ParentText: query.Text,
		Index:      0,
	})
	if e.maxSubQueries == 1 || e.generator == nil {
		return out
	}

	paraphrases, err := e.requestParaphrases(ctx, query)
	if err != nil {
		e.logger.Warn("query_expansion_degraded",
			"turn_index", query.TurnIndex,
			"error", err,
		)
		return out
	}

	seen := map[string]struct{}{normalizedKey(query.Text): {}}
	for _, text := range paraphrases {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		key := normalizedKey(text)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, domain.SubQuery{
			Text:       text,
			ParentText: query.Text,
			Index:      len(out),
		})
		if len(out) == e.maxSubQueries {
			break
		}
	}
	return out
}

func (e *QueryExpander) requestParaphrases(ctx context.Context, query domain.Query) ([]string, error) {
	genCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.generator.GenerateJSONFromPrompt(genCtx, buildParaphrasePrompt(query.Text, e.maxSubQueries-1))
	if err != nil {
		return nil, fmt.Errorf("generate paraphrases: %w", err)
	}

	paraphrases, err := parseParaphrases(raw)
	if err == nil {
		return paraphrases, nil
	}

	// One repair attempt for almost-JSON output before degrading.
	repairCtx, repairCancel := context.WithTimeout(ctx, e.timeout)
	defer repairCancel()
	repaired, repairErr := e.generator.GenerateJSONFromPrompt(repairCtx, buildParaphraseRepairPrompt(raw))
	if repairErr != nil {
		return nil, fmt.Errorf("repair paraphrases: %w", repairErr)
	}
	paraphrases, err = parseParaphrases(repaired)
	if err != nil {
		return nil, fmt.Errorf("parse repaired paraphrases: %w", err)
	}
	return paraphrases, nil
}

func parseParaphrases(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty paraphrase response")
	}

	var asArray []string
	if err := json.Unmarshal([]byte(raw), &asArray); err == nil {
		return asArray, nil
	}

	var asObject struct {
		Paraphrases []string `json:"paraphrases"`
	}
	if err := json.Unmarshal([]byte(raw), &asObject); err != nil {
		return nil, fmt.Errorf("unmarshal paraphrase json: %w", err)
	}
	return asObject.Paraphrases, nil
}

func buildParaphrasePrompt(question string, count int) string {
	return fmt.Sprintf(`You rewrite waste-disposal questions to improve document retrieval recall.
Return ONLY a JSON object: {"paraphrases":["...","..."]}.
Produce up to %d distinct paraphrases or decompositions of the question.
Preserve the original intent. No markdown, no extra keys.

Question:
%s`, count, question)
}

func buildParaphraseRepairPrompt(raw string) string {
	return fmt.Sprintf(`Convert the following text into a valid JSON object of the form
{"paraphrases":["...","..."]}. Return only JSON.
Text:
%s`, raw)
}
