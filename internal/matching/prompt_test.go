package matching

import (
	"strings"
	"testing"

	"github.com/ddrslabs/matching-backend/internal/domain"
)

func promptFixture() PromptInput {
	current := int64(2)
	return PromptInput{
		Datasets: []*domain.Dataset{
			{
				ID:               2,
				Name:             "orders",
				Description:      "order history",
				DataStructure:    "relational",
				GrowthRate:       "fast",
				AccessPatterns:   "write_heavy",
				QueryComplexity:  "high",
				EstimatedSizeGB:  120,
				AvgQueryTimeMS:   55,
				QueriesPerDay:    50000,
				CurrentDatastore: &current,
				Queries: []domain.DatasetQuery{
					{ID: 7, DatasetID: 2, Name: "daily_totals", QueryType: "aggregate", Frequency: "daily", AvgExecutionTimeMS: 900},
					{ID: 3, DatasetID: 2, Name: "by_customer", QueryType: "select", Frequency: "hourly", AvgExecutionTimeMS: 40},
				},
			},
			{
				ID:              1,
				Name:            "sessions",
				Description:     "ephemeral session blobs",
				DataStructure:   "key_value",
				GrowthRate:      "steady",
				AccessPatterns:  "read_heavy",
				QueryComplexity: "low",
				EstimatedSizeGB: 4,
				AvgQueryTimeMS:  2,
				QueriesPerDay:   900000,
				SampleData:      `{"sid":"abc","ttl":3600}`,
			},
		},
		Datastores: []*domain.Datastore{
			{ID: 20, Name: "redis-main", Type: "key_value", System: "redis", Description: "in-memory store", IsActive: true, MaxConnections: 10000, AvgResponseTimeMS: 1, StorageCapacityGB: 64},
			{ID: 10, Name: "pg-main", Type: "relational", System: "postgresql", Description: "primary cluster", IsActive: true, MaxConnections: 500, AvgResponseTimeMS: 12, StorageCapacityGB: 2000},
		},
	}
}

func TestBuildPromptDeterministic(t *testing.T) {
	in := promptFixture()
	a := BuildPrompt(in)
	b := BuildPrompt(in)
	if a.Text != b.Text {
		t.Fatal("identical input produced different prompts")
	}
	if a.Truncated {
		t.Fatal("small fixture should not be truncated")
	}

	// Input order must not matter; records render in ID order.
	swapped := promptFixture()
	swapped.Datasets[0], swapped.Datasets[1] = swapped.Datasets[1], swapped.Datasets[0]
	swapped.Datastores[0], swapped.Datastores[1] = swapped.Datastores[1], swapped.Datastores[0]
	c := BuildPrompt(swapped)
	if c.Text != a.Text {
		t.Fatal("reordered input changed the rendered prompt")
	}
}

func TestBuildPromptFieldOrder(t *testing.T) {
	p := BuildPrompt(promptFixture())

	iSessions := strings.Index(p.Text, "Dataset ID: 1")
	iOrders := strings.Index(p.Text, "Dataset ID: 2")
	if iSessions == -1 || iOrders == -1 || iSessions > iOrders {
		t.Fatalf("datasets not rendered in ID order: sessions=%d orders=%d", iSessions, iOrders)
	}

	iPG := strings.Index(p.Text, "Datastore ID: 10")
	iRedis := strings.Index(p.Text, "Datastore ID: 20")
	if iPG == -1 || iRedis == -1 || iPG > iRedis {
		t.Fatalf("datastores not rendered in ID order: pg=%d redis=%d", iPG, iRedis)
	}

	// Queries render in ID order inside their dataset block.
	iByCustomer := strings.Index(p.Text, "- by_customer")
	iDaily := strings.Index(p.Text, "- daily_totals")
	if iByCustomer == -1 || iDaily == -1 || iByCustomer > iDaily {
		t.Fatalf("queries not rendered in ID order: by_customer=%d daily_totals=%d", iByCustomer, iDaily)
	}

	for _, want := range []string{
		"Current Datastore: none",
		"Current Datastore: 2",
		`Sample Data: {"sid":"abc","ttl":3600}`,
		"Type: relational (postgresql)",
		`"recommendations"`,
	} {
		if !strings.Contains(p.Text, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}

func TestBuildPromptTruncation(t *testing.T) {
	in := promptFixture()
	in.Datasets[0].Description = strings.Repeat("x", 50000)
	in.Datasets[1].SampleData = strings.Repeat("y", 50000)
	in.MaxBytes = 8 << 10

	p := BuildPrompt(in)
	if !p.Truncated {
		t.Fatal("expected truncation flag")
	}
	if len(p.Text) > in.MaxBytes {
		t.Fatalf("prompt still over budget: %d > %d", len(p.Text), in.MaxBytes)
	}
	if !strings.Contains(p.Text, TruncationMarker) {
		t.Fatal("truncated prompt missing marker")
	}
	// Structural fields survive truncation intact.
	for _, want := range []string{"Dataset ID: 1", "Dataset ID: 2", "Datastore ID: 10", "Datastore ID: 20", "Size: 120.0GB"} {
		if !strings.Contains(p.Text, want) {
			t.Fatalf("truncated prompt lost structural field %q", want)
		}
	}
}

func TestBuildPromptDefaultUserPrompt(t *testing.T) {
	in := promptFixture()
	in.UserPrompt = "   "
	p := BuildPrompt(in)
	if !strings.HasPrefix(p.Text, DefaultUserPrompt) {
		t.Fatal("blank user prompt should fall back to the default")
	}

	in.UserPrompt = "Prefer managed services."
	p = BuildPrompt(in)
	if !strings.HasPrefix(p.Text, "Prefer managed services.") {
		t.Fatal("explicit user prompt should lead the rendered text")
	}
}
