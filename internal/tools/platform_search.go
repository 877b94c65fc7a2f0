package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/typesense/typesense-go/v4/typesense"
	"github.com/typesense/typesense-go/v4/typesense/api"
	"github.com/typesense/typesense-go/v4/typesense/api/pointer"

	"samhq.app/sam/core/config"
)

// DocumentSearcher is satisfied by typesense Collection(...).Documents().
type DocumentSearcher interface {
	Search(ctx context.Context, params *api.SearchCollectionParams) (*api.SearchResult, error)
}

// PlatformSearch finds published, not yet ended activities.
type PlatformSearch struct {
	docs    DocumentSearcher
	baseURL *url.URL
	now     func() time.Time
}

func NewTypesenseDocuments(cfg config.TypesenseConfig) DocumentSearcher {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(10*time.Second),
	)
	return client.Collection(cfg.Collection).Documents()
}

func NewPlatformSearch(docs DocumentSearcher, platformBaseURL string) (*PlatformSearch, error) {
	base, err := url.Parse(platformBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing PLATFORM_BASE_URL: %w", err)
	}
	return &PlatformSearch{docs: docs, baseURL: base, now: time.Now}, nil
}

// WithClock replaces the time source used for date filters.
func (p *PlatformSearch) WithClock(now func() time.Time) *PlatformSearch {
	p.now = now
	return p
}

// PlatformQuery holds the platform_search arguments.
type PlatformQuery struct {
	Query     string `json:"query" jsonschema_description:"The query to search for."`
	StartDate int64  `json:"start_date,omitempty" jsonschema_description:"The minimum start date in Unix Epoch format (without milliseconds)."`
	Language  string `json:"language,omitempty" jsonschema_description:"The language of the activity, e.g. \"DE\" or \"EN\"."`
	MinAge    int    `json:"min_age,omitempty" jsonschema_description:"The minimum age for the activity."`
	MaxAge    int    `json:"max_age,omitempty" jsonschema_description:"The maximum age for the activity."`
}

func (p *PlatformSearch) Definition() Definition {
	return Func(
		"Search the platform for information that matches the given query.",
		func(ctx context.Context, args PlatformQuery, _ CallContext) (string, error) {
			return p.Search(ctx, args), nil
		},
	)
}

// Filters builds the typesense filter_by expression.
func (p *PlatformSearch) Filters(args PlatformQuery) string {
	now := p.now()
	filters := []string{"is_published:true"}
	if args.StartDate > 0 && args.StartDate >= now.Unix() {
		filters = append(filters, fmt.Sprintf("start_date:>%d", args.StartDate))
	}
	filters = append(filters, fmt.Sprintf("end_date:>%d", now.Unix()))
	if args.Language != "" {
		filters = append(filters, "languages:="+args.Language)
	}
	if args.MinAge > 0 {
		filters = append(filters, fmt.Sprintf("min_age:>=%d", args.MinAge))
	}
	if args.MaxAge > 0 {
		filters = append(filters, fmt.Sprintf("max_age:<=%d", args.MaxAge))
	}
	return strings.Join(filters, " && ")
}

func (p *PlatformSearch) Search(ctx context.Context, args PlatformQuery) string {
	filters := p.Filters(args)
	slog.DebugContext(ctx, "searching the platform", "query", args.Query, "filters", filters)

	result, err := p.docs.Search(ctx, &api.SearchCollectionParams{
		Q:             pointer.String(args.Query),
		QueryBy:       pointer.String("title,parent_object_title,description"),
		FilterBy:      pointer.String(filters),
		IncludeFields: pointer.String("title,parent_object_title,public_url"),
		PerPage:       pointer.Int(20),
	})
	if err != nil {
		slog.ErrorContext(ctx, "platform search failed", "query", args.Query, "error", err)
		return "search failed"
	}
	if result.Hits == nil || len(*result.Hits) == 0 {
		slog.WarnContext(ctx, "no platform results found", "query", args.Query)
		return "no results found"
	}

	out := make(map[string]string, len(*result.Hits))
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		doc := *hit.Document
		key := fmt.Sprintf("%s: %s", stringField(doc, "parent_object_title"), stringField(doc, "title"))
		out[key] = p.resolve(stringField(doc, "public_url"))
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "search failed"
	}
	return string(data)
}

func (p *PlatformSearch) resolve(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return path
	}
	return p.baseURL.ResolveReference(ref).String()
}

func stringField(doc map[string]interface{}, key string) string {
	s, _ := doc[key].(string)
	return s
}
