package memory

import (
	"context"
	"strings"
	"time"

	"github.com/memscribe/memscribe/pkg/core"
	"github.com/memscribe/memscribe/pkg/store"
)

// CreateEntityRequest is the argument bundle for CreateEntity.
// Entities have no vector embedding.
type CreateEntityRequest struct {
	EntityType core.EntityType
	Name       string
	PersonType string
	FirstName  string
	LastName   string
	Company    string
	Title      string
	Email      string
	Phone      string
	Address    string
	Website    string
	Notes      string
	Tags       []string
	Importance float64
	Metadata   map[string]any
}

func (svc *Service) CreateEntity(ctx context.Context, userID string, req CreateEntityRequest) Envelope {
	if err := svc.requireUserID(userID); err != nil {
		return Fail(err)
	}

	now := time.Now()
	e := &core.Entity{
		ID:         svc.IDs.Next(),
		UserID:     userID,
		EntityType: req.EntityType,
		Name:       req.Name,
		PersonType: req.PersonType,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Company:    req.Company,
		Title:      req.Title,
		Email:      req.Email,
		Phone:      req.Phone,
		Address:    req.Address,
		Website:    req.Website,
		Notes:      req.Notes,
		Tags:       req.Tags,
		Importance: req.Importance,
		Metadata:   req.Metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := svc.Store.CreateEntity(ctx, userID, e); err != nil {
		return Fail(err)
	}
	return OK(e)
}

func (svc *Service) GetEntity(ctx context.Context, userID, id string) Envelope {
	if err := svc.requireUserID(userID); err != nil {
		return Fail(err)
	}
	e, err := svc.Store.GetEntity(ctx, id, userID)
	if err != nil {
		return Fail(err)
	}
	return OK(e)
}

// UpdateEntityRequest carries a partial entity patch.
type UpdateEntityRequest struct {
	Name        *string
	PersonType  *string
	FirstName   *string
	LastName    *string
	Company     *string
	Title       *string
	Email       *string
	Phone       *string
	Address     *string
	Website     *string
	Notes       *string
	Tags        []string
	TagsSet     bool
	Importance  *float64
	Metadata    map[string]any
	MetadataSet bool
}

func (svc *Service) UpdateEntity(ctx context.Context, userID, id string, req UpdateEntityRequest) Envelope {
	if err := svc.requireUserID(userID); err != nil {
		return Fail(err)
	}

	patch := &store.EntityPatch{
		Name:        req.Name,
		PersonType:  req.PersonType,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Company:     req.Company,
		Title:       req.Title,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		Website:     req.Website,
		Notes:       req.Notes,
		Tags:        req.Tags,
		TagsSet:     req.TagsSet,
		Importance:  req.Importance,
		Metadata:    req.Metadata,
		MetadataSet: req.MetadataSet,
	}

	e, err := svc.Store.UpdateEntity(ctx, id, userID, patch)
	if err != nil {
		return Fail(err)
	}
	return OK(e)
}

func (svc *Service) DeleteEntity(ctx context.Context, userID, id string) Envelope {
	if err := svc.requireUserID(userID); err != nil {
		return Fail(err)
	}
	if err := svc.Store.DeleteEntity(ctx, id, userID); err != nil {
		return Fail(err)
	}
	return OK(nil)
}

// SearchEntitiesRequest is a narrower, entity-shaped search: no vector
// pass (entities carry no embedding), keyword match over
// name/company/email/notes plus an optional entity-type filter.
type SearchEntitiesRequest struct {
	Query      string
	EntityType core.EntityType
}

func (svc *Service) SearchEntities(ctx context.Context, userID string, req SearchEntitiesRequest) Envelope {
	if err := svc.requireUserID(userID); err != nil {
		return Fail(err)
	}

	entities, err := svc.Store.ListEntities(ctx, userID)
	if err != nil {
		return Fail(err)
	}

	var matched []*core.Entity
	for _, e := range entities {
		if req.EntityType != "" && e.EntityType != req.EntityType {
			continue
		}
		if req.Query != "" && !entityMatchesKeyword(e, req.Query) {
			continue
		}
		matched = append(matched, e)
	}
	return OK(matched)
}

func entityMatchesKeyword(e *core.Entity, query string) bool {
	haystack := strings.ToLower(e.Name + " " + e.Company + " " + e.Email + " " + e.Notes)
	return strings.Contains(haystack, strings.ToLower(query))
}
