package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/memscribe/memscribe/pkg/buffer"
	"github.com/memscribe/memscribe/pkg/core"
	"github.com/memscribe/memscribe/pkg/search"
	"github.com/memscribe/memscribe/pkg/store"
)

// AddMemoryRequest is the argument bundle for AddMemory. Zero-valued
// pointer fields take the documented defaults.
type AddMemoryRequest struct {
	Title             string
	Content           string
	Type              core.MemoryType
	Importance        *float64
	Tags              []string
	EntityRefs        []string
	Metadata          map[string]any
	GenerateEmbedding *bool
	UseBuffer         bool
}

const defaultImportance = 0.5

func validateImportance(v float64) error {
	if v < 0 || v > 1 {
		return core.New("memory.importance", core.KindInvalidArgument,
			fmt.Sprintf("importance must be between 0.0 and 1.0, got %v", v), nil)
	}
	return nil
}

// AddMemory creates a memory owned by userID. The id is always
// assigned client-side before the first write. When use_buffer is
// requested, the write is handed to the buffer and a receipt is
// returned instead of the stored memory.
func (svc *Service) AddMemory(ctx context.Context, userID string, req AddMemoryRequest) Envelope {
	if err := svc.requireUserID(userID); err != nil {
		return Fail(err)
	}

	importance := AutoImportance(req.Content, req.Metadata)
	if req.Importance != nil {
		importance = *req.Importance
	}
	if err := validateImportance(importance); err != nil {
		return Fail(err)
	}

	generateEmbedding := true
	if req.GenerateEmbedding != nil {
		generateEmbedding = *req.GenerateEmbedding
	}

	now := time.Now()
	m := &core.Memory{
		ID:         svc.IDs.Next(),
		UserID:     userID,
		Title:      req.Title,
		Content:    req.Content,
		Type:       req.Type,
		Importance: importance,
		Tags:       req.Tags,
		EntityRefs: req.EntityRefs,
		Metadata:   req.Metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if req.UseBuffer {
		if svc.Buffer == nil {
			return Fail(core.New("memory.add", core.KindDependencyUnavail, "write buffer is not configured", nil))
		}
		receipt, err := svc.Buffer.EnqueueAddMemory(ctx, userID, m)
		if err != nil {
			return Fail(err)
		}
		return OK(receipt)
	}

	if _, err := svc.Store.CreateMemory(ctx, userID, m); err != nil {
		return Fail(err)
	}

	if generateEmbedding && svc.Embedder != nil {
		vectors, err := svc.Embedder.Embed(ctx, userID, []string{m.Title + "\n" + m.Content})
		if err == nil && len(vectors) == 1 {
			if err := svc.Store.SetMemoryEmbedding(ctx, m.ID, userID, vectors[0]); err == nil {
				m.Embedding = vectors[0]
			}
		}
	}

	return OK(m)
}

// GetMemory fetches a memory by id, enforcing ownership.
func (svc *Service) GetMemory(ctx context.Context, userID, id string) Envelope {
	if err := svc.requireUserID(userID); err != nil {
		return Fail(err)
	}
	m, err := svc.Store.GetMemory(ctx, id, userID)
	if err != nil {
		return Fail(err)
	}
	return OK(m)
}

// UpdateMemoryRequest carries a partial memory patch. A changed Title
// or Content schedules re-embedding.
type UpdateMemoryRequest struct {
	Title         *string
	Content       *string
	Type          *core.MemoryType
	Importance    *float64
	Tags          []string
	TagsSet       bool
	EntityRefs    []string
	EntityRefsSet bool
	Metadata      map[string]any
	MetadataSet   bool
	IsArchived    *bool
	UseBuffer     bool
}

func (svc *Service) UpdateMemory(ctx context.Context, userID, id string, req UpdateMemoryRequest) Envelope {
	if err := svc.requireUserID(userID); err != nil {
		return Fail(err)
	}
	if req.Importance != nil {
		if err := validateImportance(*req.Importance); err != nil {
			return Fail(err)
		}
	}

	needsReembed := req.Title != nil || req.Content != nil

	if needsReembed && req.UseBuffer {
		if svc.Buffer == nil {
			return Fail(core.New("memory.update", core.KindDependencyUnavail, "write buffer is not configured", nil))
		}
		receipt, err := svc.Buffer.EnqueueUpdateMemory(ctx, userID, id, req.Title, req.Content)
		if err != nil {
			return Fail(err)
		}
		return OK(receipt)
	}

	patch := &store.MemoryPatch{
		Title:         req.Title,
		Content:       req.Content,
		Type:          req.Type,
		Importance:    req.Importance,
		Tags:          req.Tags,
		TagsSet:       req.TagsSet,
		EntityRefs:    req.EntityRefs,
		EntityRefsSet: req.EntityRefsSet,
		Metadata:      req.Metadata,
		MetadataSet:   req.MetadataSet,
		IsArchived:    req.IsArchived,
	}

	m, err := svc.Store.UpdateMemory(ctx, id, userID, patch)
	if err != nil {
		return Fail(err)
	}

	if needsReembed && svc.Embedder != nil {
		vectors, err := svc.Embedder.Embed(ctx, userID, []string{m.Title + "\n" + m.Content})
		if err == nil && len(vectors) == 1 {
			if err := svc.Store.SetMemoryEmbedding(ctx, m.ID, userID, vectors[0]); err == nil {
				m.Embedding = vectors[0]
			}
		}
	}

	return OK(m)
}

func (svc *Service) DeleteMemory(ctx context.Context, userID, id string) Envelope {
	if err := svc.requireUserID(userID); err != nil {
		return Fail(err)
	}
	if err := svc.Store.DeleteMemory(ctx, id, userID); err != nil {
		return Fail(err)
	}
	return OK(nil)
}

// SearchMemoriesRequest mirrors search.Options plus the raw query
// string.
type SearchMemoriesRequest struct {
	Query       string
	Limit       int
	Threshold   *float64
	Strategy    search.Strategy
	MemoryTypes []core.MemoryType
	TagsAnyOf   []string
}

// SearchResponse carries the ranked memories alongside the mode the
// engine actually used, per the envelope-annotation contract.
type SearchResponse struct {
	Memories       []search.ScoredMemory `json:"memories"`
	Mode           string                `json:"mode"`
	EmbeddingError string                `json:"embedding_error,omitempty"`
}

func (svc *Service) SearchMemories(ctx context.Context, userID string, req SearchMemoriesRequest) Envelope {
	if err := svc.requireUserID(userID); err != nil {
		return Fail(err)
	}
	if svc.Search == nil {
		return Fail(core.New("memory.search", core.KindDependencyUnavail, "search engine is not configured", nil))
	}

	result, err := svc.Search.Search(ctx, userID, req.Query, search.Options{
		Limit:       req.Limit,
		Threshold:   req.Threshold,
		Strategy:    req.Strategy,
		MemoryTypes: req.MemoryTypes,
		TagsAnyOf:   req.TagsAnyOf,
	})
	if err != nil {
		return Fail(err)
	}

	return OK(SearchResponse{Memories: result.Memories, Mode: result.Mode, EmbeddingError: result.EmbeddingError})
}

// UpdateMissingEmbeddings triggers an immediate backfill pass for
// userID without waiting for it to complete.
func (svc *Service) UpdateMissingEmbeddings(ctx context.Context, userID string, backfiller *buffer.Backfiller) Envelope {
	if err := svc.requireUserID(userID); err != nil {
		return Fail(err)
	}
	if backfiller == nil {
		return Fail(core.New("memory.update_missing_embeddings", core.KindDependencyUnavail, "backfiller is not configured", nil))
	}
	go func() {
		_ = backfiller.SweepOnce(context.Background(), userID)
	}()
	return OK(map[string]string{"status": "started"})
}
