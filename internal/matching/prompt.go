package matching

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ddrslabs/matching-backend/internal/domain"
)

const (
	// DefaultSystemPrompt and DefaultUserPrompt are applied when a submission
	// leaves the prompt fields empty.
	DefaultSystemPrompt = "You are an expert database architect with deep knowledge of different database systems, their strengths, limitations, and optimal use cases. Analyze the provided datasets and datastores to make informed recommendations."
	DefaultUserPrompt   = "Based on the dataset characteristics (structure, size, growth rate, access patterns, query complexity) and available datastores (type, system, performance, capacity), recommend the optimal datastore for each dataset. Provide clear reasoning and confidence scores."

	// TruncationMarker is appended to the prompt whenever free-text fields had
	// to be clipped to fit the size budget, so consumers can lower their
	// confidence expectations.
	TruncationMarker = "NOTE: some description and sample-data fields were truncated to fit the prompt size limit."
)

type PromptInput struct {
	Datasets   []*domain.Dataset
	Datastores []*domain.Datastore
	UserPrompt string
	// MaxBytes caps the rendered prompt size. Zero means no cap.
	MaxBytes int
}

type Prompt struct {
	Text      string
	Truncated bool
}

// BuildPrompt renders the matching prompt. It is a pure function: identical
// input records and templates produce byte-identical output. Records are
// rendered in ID order with a fixed field order; when the budget is exceeded
// only free-text fields (descriptions, sample data) are clipped, never IDs or
// structural fields.
func BuildPrompt(in PromptInput) Prompt {
	text := render(in, 0, true)
	if in.MaxBytes <= 0 || len(text) <= in.MaxBytes {
		return Prompt{Text: text}
	}
	// Over budget: shrink the free-text cap until the prompt fits. The last
	// step drops free text entirely; structural fields are never clipped.
	for _, freeTextCap := range []int{256, 64, 0} {
		text = render(in, freeTextCap, false)
		if len(text) <= in.MaxBytes || freeTextCap == 0 {
			break
		}
	}
	return Prompt{Text: text, Truncated: true}
}

func render(in PromptInput, freeTextCap int, unclipped bool) string {
	datasets := append([]*domain.Dataset(nil), in.Datasets...)
	sort.Slice(datasets, func(i, j int) bool { return datasets[i].ID < datasets[j].ID })
	datastores := append([]*domain.Datastore(nil), in.Datastores...)
	sort.Slice(datastores, func(i, j int) bool { return datastores[i].ID < datastores[j].ID })

	clip := func(s string) string {
		if unclipped {
			return s
		}
		return clipText(s, freeTextCap)
	}

	var b strings.Builder
	userPrompt := strings.TrimSpace(in.UserPrompt)
	if userPrompt == "" {
		userPrompt = DefaultUserPrompt
	}
	b.WriteString(userPrompt)
	b.WriteString("\n\nDATASETS TO MATCH:\n")

	for _, ds := range datasets {
		fmt.Fprintf(&b, "Dataset ID: %d\n", ds.ID)
		fmt.Fprintf(&b, "Name: %s\n", ds.Name)
		fmt.Fprintf(&b, "Description: %s\n", clip(ds.Description))
		fmt.Fprintf(&b, "Structure: %s\n", ds.DataStructure)
		fmt.Fprintf(&b, "Size: %.1fGB\n", ds.EstimatedSizeGB)
		fmt.Fprintf(&b, "Growth Rate: %s\n", ds.GrowthRate)
		fmt.Fprintf(&b, "Access Patterns: %s\n", ds.AccessPatterns)
		fmt.Fprintf(&b, "Query Complexity: %s\n", ds.QueryComplexity)
		fmt.Fprintf(&b, "Queries per Day: %d\n", ds.QueriesPerDay)
		fmt.Fprintf(&b, "Avg Query Time: %.0fms\n", ds.AvgQueryTimeMS)
		if ds.CurrentDatastore != nil {
			fmt.Fprintf(&b, "Current Datastore: %d\n", *ds.CurrentDatastore)
		} else {
			b.WriteString("Current Datastore: none\n")
		}
		if sample := clip(ds.SampleData); sample != "" {
			fmt.Fprintf(&b, "Sample Data: %s\n", sample)
		}
		queries := append([]domain.DatasetQuery(nil), ds.Queries...)
		sort.Slice(queries, func(i, j int) bool { return queries[i].ID < queries[j].ID })
		fmt.Fprintf(&b, "Queries (%d):\n", len(queries))
		for _, q := range queries {
			fmt.Fprintf(&b, "  - %s: type=%s frequency=%s avg=%.0fms\n",
				q.Name, q.QueryType, q.Frequency, q.AvgExecutionTimeMS)
		}
		b.WriteString("\n")
	}

	b.WriteString("AVAILABLE DATASTORES:\n")
	for _, st := range datastores {
		fmt.Fprintf(&b, "Datastore ID: %d\n", st.ID)
		fmt.Fprintf(&b, "Name: %s\n", st.Name)
		fmt.Fprintf(&b, "Type: %s (%s)\n", st.Type, st.System)
		fmt.Fprintf(&b, "Description: %s\n", clip(st.Description))
		fmt.Fprintf(&b, "Active: %t\n", st.IsActive)
		fmt.Fprintf(&b, "Max Connections: %d\n", st.MaxConnections)
		fmt.Fprintf(&b, "Avg Response Time: %.0fms\n", st.AvgResponseTimeMS)
		fmt.Fprintf(&b, "Storage Capacity: %.1fGB\n", st.StorageCapacityGB)
		b.WriteString("\n")
	}

	b.WriteString(responseFormatInstructions)
	if !unclipped {
		b.WriteString("\n")
		b.WriteString(TruncationMarker)
	}
	return b.String()
}

const responseFormatInstructions = `Please provide your response in the following JSON format:
{
    "recommendations": [
        {
            "dataset_id": <dataset_id>,
            "datastore_id": <recommended_datastore_id>,
            "reason": "<detailed_explanation>",
            "confidence": <score_between_0_and_100>
        }
    ],
    "overall_confidence": <score_between_0_and_100>,
    "summary": "<short_overall_summary>"
}

Ensure that:
1. Every dataset gets a recommendation
2. Confidence scores are realistic (0 to 100)
3. Reasons are detailed and technical
4. Response is valid JSON`

func clipText(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
