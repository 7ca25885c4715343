package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"stayhub/internal/models"

	"github.com/meilisearch/meilisearch-go"
)

const DefaultIndex = "properties"

type SearchClient struct {
	client *meilisearch.Client
	index  string
}

// propertyDocument is the indexed projection of a listing.
type propertyDocument struct {
	ID            int64    `json:"id"`
	HostID        int64    `json:"host_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	PropertyType  string   `json:"property_type"`
	Location      string   `json:"location"`
	PricePerNight float64  `json:"price_per_night"`
	MaxGuests     int      `json:"max_guests"`
	Amenities     []string `json:"amenities"`
	IsAvailable   bool     `json:"is_available"`
	Rating        float64  `json:"rating"`
}

func NewSearchClient(host, apiKey, index string) *SearchClient {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})
	if index == "" {
		index = DefaultIndex
	}

	return &SearchClient{
		client: client,
		index:  index,
	}
}

// InitIndex creates the index and configures its attributes.
func (s *SearchClient) InitIndex() error {
	_, err := s.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        s.index,
		PrimaryKey: "id",
	})
	if err != nil && !isIndexExists(err) {
		return fmt.Errorf("create index: %w", err)
	}

	idx := s.client.Index(s.index)
	if _, err := idx.UpdateSearchableAttributes(&[]string{
		"title",
		"location",
		"description",
		"property_type",
		"amenities",
	}); err != nil {
		return fmt.Errorf("searchable attributes: %w", err)
	}

	if _, err := idx.UpdateFilterableAttributes(&[]string{
		"property_type",
		"price_per_night",
		"is_available",
		"host_id",
	}); err != nil {
		return fmt.Errorf("filterable attributes: %w", err)
	}

	if _, err := idx.UpdateSortableAttributes(&[]string{
		"price_per_night",
		"rating",
	}); err != nil {
		return fmt.Errorf("sortable attributes: %w", err)
	}

	return nil
}

func isIndexExists(err error) bool {
	return strings.Contains(err.Error(), "index_already_exists")
}

func toDocument(p *models.Property) propertyDocument {
	price, _ := p.PricePerNight.Float64()
	return propertyDocument{
		ID:            p.ID,
		HostID:        p.HostID,
		Title:         p.Title,
		Description:   p.Description,
		PropertyType:  p.PropertyType,
		Location:      p.Location,
		PricePerNight: price,
		MaxGuests:     p.MaxGuests,
		Amenities:     p.Amenities,
		IsAvailable:   p.IsAvailable,
		Rating:        p.Rating,
	}
}

func (s *SearchClient) IndexProperty(ctx context.Context, p *models.Property) error {
	return s.IndexProperties(ctx, []*models.Property{p})
}

func (s *SearchClient) IndexProperties(_ context.Context, properties []*models.Property) error {
	if len(properties) == 0 {
		return nil
	}
	docs := make([]propertyDocument, 0, len(properties))
	for _, p := range properties {
		docs = append(docs, toDocument(p))
	}
	if _, err := s.client.Index(s.index).AddDocuments(docs, "id"); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

// Search returns matching property ids in relevance order.
func (s *SearchClient) Search(_ context.Context, query string, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = models.DefaultListLimit
	}

	res, err := s.client.Index(s.index).Search(query, &meilisearch.SearchRequest{
		Limit:                int64(limit),
		AttributesToRetrieve: []string{"id"},
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	ids := make([]int64, 0, len(res.Hits))
	for _, hit := range res.Hits {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		if id, ok := hitID(hitMap["id"]); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func hitID(v interface{}) (int64, bool) {
	switch id := v.(type) {
	case float64:
		return int64(id), true
	case json.Number:
		n, err := id.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(id, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func (s *SearchClient) Healthy() bool {
	return s.client.IsHealthy()
}
