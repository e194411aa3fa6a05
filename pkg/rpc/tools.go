package rpc

import (
	"github.com/go-playground/validator/v10"

	"github.com/memscribe/memscribe/pkg/core"
	"github.com/memscribe/memscribe/pkg/memory"
	"github.com/memscribe/memscribe/pkg/search"
)

// validate is shared across every tool argument struct; validator.Validate
// is safe for concurrent use once built, same as every example in the
// corpus that reaches for this package constructs it once at startup.
var validate = validator.New()

// ToolDescriptor is what tools/list returns for a single tool: its name
// and human description. It carries no input schema; a tool's arguments
// are checked against its Go argument struct and validate tags only
// when the tool is called.
type ToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var toolDescriptors = []ToolDescriptor{
	{Name: "store_memory", Description: "Store a new memory, optionally generating its embedding."},
	{Name: "recall_memories", Description: "Search memories by keyword, vector similarity, or metadata predicate."},
	{Name: "get_memory", Description: "Fetch a single memory by id."},
	{Name: "update_memory", Description: "Patch a memory's fields; changing title or content schedules re-embedding."},
	{Name: "delete_memory", Description: "Delete a memory by id."},
	{Name: "get_memory_stats", Description: "Return per-tenant memory/entity counts and embedding coverage."},
	{Name: "update_missing_embeddings", Description: "Trigger an immediate embedding backfill pass."},
	{Name: "get_daily_costs", Description: "Aggregate per-provider API usage and cost over a trailing window."},
}

// storeMemoryArgs is the store_memory tool's argument schema.
type storeMemoryArgs struct {
	Content    string         `json:"content" validate:"required"`
	Type       string         `json:"type,omitempty"`
	Importance *float64       `json:"importance,omitempty" validate:"omitempty,gte=0,lte=1"`
	Title      string         `json:"title,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func (a storeMemoryArgs) toRequest() memory.AddMemoryRequest {
	memType := core.MemoryType(a.Type)
	if memType == "" {
		memType = core.MemoryTypeMemory
	}
	return memory.AddMemoryRequest{
		Title:      a.Title,
		Content:    a.Content,
		Type:       memType,
		Importance: a.Importance,
		Tags:       a.Tags,
		Metadata:   a.Metadata,
	}
}

// recallMemoriesArgs is the recall_memories tool's argument schema.
type recallMemoriesArgs struct {
	Query     string   `json:"query" validate:"required"`
	Limit     int      `json:"limit,omitempty" validate:"omitempty,gte=1,lte=1000"`
	Strategy  string   `json:"strategy,omitempty" validate:"omitempty,oneof=recency importance similarity composite"`
	Threshold *float64 `json:"threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
}

func (a recallMemoriesArgs) toRequest() memory.SearchMemoriesRequest {
	strategy := search.Strategy(a.Strategy)
	if strategy == "" {
		strategy = search.StrategyComposite
	}
	return memory.SearchMemoriesRequest{
		Query:     a.Query,
		Limit:     a.Limit,
		Threshold: a.Threshold,
		Strategy:  strategy,
	}
}

// getMemoryArgs is shared by get_memory and delete_memory.
type getMemoryArgs struct {
	ID string `json:"id" validate:"required"`
}

// updateMemoryArgs is the update_memory tool's argument schema.
type updateMemoryArgs struct {
	ID         string         `json:"id" validate:"required"`
	Title      *string        `json:"title,omitempty"`
	Content    *string        `json:"content,omitempty"`
	Importance *float64       `json:"importance,omitempty" validate:"omitempty,gte=0,lte=1"`
	Tags       []string       `json:"tags,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func (a updateMemoryArgs) toRequest() memory.UpdateMemoryRequest {
	return memory.UpdateMemoryRequest{
		Title:       a.Title,
		Content:     a.Content,
		Importance:  a.Importance,
		Tags:        a.Tags,
		TagsSet:     a.Tags != nil,
		Metadata:    a.Metadata,
		MetadataSet: a.Metadata != nil,
	}
}

// getDailyCostsArgs is the get_daily_costs tool's argument schema.
type getDailyCostsArgs struct {
	Days int `json:"days,omitempty" validate:"omitempty,gte=1,lte=365"`
}
