// internal/upstream/github/client.go

// Package github adapts the GitHub REST API to the engine's fetch operation
// contract. One authenticated client is maintained per token; every method
// follows pagination to exhaustion and reports one cost point per page.
package github

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	gogithub "github.com/google/go-github/v69/github"
	"golang.org/x/oauth2"

	apperrors "github-portal/internal/common/errors"
	"github-portal/internal/common/logger"
	"github-portal/internal/engine"
)

// APIName is the cache namespace for all GitHub-backed methods.
const APIName = "github"

// Method identities registered by this backend.
const (
	MethodListTeams         = "teams.list"
	MethodListTeamMembers   = "teams.members"
	MethodListRepos         = "repos.list"
	MethodListCollaborators = "repos.collaborators"
)

// Backend owns the per-token go-github clients and exposes the registered
// fetch operations.
type Backend struct {
	baseURL string
	log     logger.Logger

	mu      sync.Mutex
	clients map[string]*gogithub.Client
}

// New creates a Backend. baseURL overrides api.github.com (GHE or tests);
// empty means the public API.
func New(baseURL string, log logger.Logger) *Backend {
	return &Backend{
		baseURL: baseURL,
		log:     log.WithFields(map[string]interface{}{"component": "github-backend"}),
		clients: make(map[string]*gogithub.Client),
	}
}

// Register binds every GitHub method into the engine's method registry.
func (b *Backend) Register(registry *engine.MethodRegistry) {
	registry.Register(APIName, MethodListTeams, b.listTeams)
	registry.Register(APIName, MethodListTeamMembers, b.listTeamMembers)
	registry.Register(APIName, MethodListRepos, b.listRepos)
	registry.Register(APIName, MethodListCollaborators, b.listCollaborators)
}

func (b *Backend) client(token string) (*gogithub.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cli, ok := b.clients[token]; ok {
		return cli, nil
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(context.Background(), ts)

	cli := gogithub.NewClient(httpClient)
	if b.baseURL != "" {
		var err error
		cli, err = cli.WithEnterpriseURLs(b.baseURL, b.baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github base url %q: %w", b.baseURL, err)
		}
	}

	b.clients[token] = cli
	return cli, nil
}

func (b *Backend) listTeams(ctx context.Context, token string, opts engine.Options) (*engine.FetchResult, error) {
	if opts.Org == "" {
		return nil, apperrors.NewConfigurationError("teams.list requires org")
	}
	return b.paginate(ctx, token, fmt.Sprintf("orgs/%s/teams", opts.Org), opts)
}

func (b *Backend) listTeamMembers(ctx context.Context, token string, opts engine.Options) (*engine.FetchResult, error) {
	if opts.TeamID == 0 {
		return nil, apperrors.NewConfigurationError("teams.members requires team_id")
	}
	return b.paginate(ctx, token, fmt.Sprintf("teams/%d/members", opts.TeamID), opts)
}

func (b *Backend) listRepos(ctx context.Context, token string, opts engine.Options) (*engine.FetchResult, error) {
	if opts.Org == "" {
		return nil, apperrors.NewConfigurationError("repos.list requires org")
	}
	return b.paginate(ctx, token, fmt.Sprintf("orgs/%s/repos", opts.Org), opts)
}

func (b *Backend) listCollaborators(ctx context.Context, token string, opts engine.Options) (*engine.FetchResult, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, apperrors.NewConfigurationError("repos.collaborators requires owner and repo")
	}
	return b.paginate(ctx, token, fmt.Sprintf("repos/%s/%s/collaborators", opts.Owner, opts.Repo), opts)
}

// paginate fetches every page of a list endpoint, flattening items into one
// sequence. Headers reflect the last response so rate-limit counters are the
// most recent ones observed.
func (b *Backend) paginate(ctx context.Context, token, path string, opts engine.Options) (*engine.FetchResult, error) {
	cli, err := b.client(token)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	if opts.PerPage > 0 {
		query.Set("per_page", fmt.Sprintf("%d", opts.PerPage))
	}
	for k, v := range opts.Filters {
		query.Set(k, v)
	}

	var (
		items   []interface{}
		headers map[string]string
		cost    float64
	)

	page := 1
	for {
		query.Set("page", fmt.Sprintf("%d", page))

		req, err := cli.NewRequest("GET", path+"?"+query.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("build request %s: %w", path, err)
		}

		var pageItems []interface{}
		resp, err := cli.Do(ctx, req, &pageItems)
		if err != nil {
			return nil, fmt.Errorf("github GET %s: %w", path, err)
		}

		items = append(items, pageItems...)
		cost++
		headers = responseHeaders(resp)

		if resp.NextPage == 0 {
			break
		}
		page = resp.NextPage
	}

	if items == nil {
		items = []interface{}{}
	}

	return &engine.FetchResult{
		Data:    items,
		Headers: headers,
		Cost:    cost,
	}, nil
}

func responseHeaders(resp *gogithub.Response) map[string]string {
	headers := make(map[string]string, 4)
	for _, name := range []string{"ETag", "X-Ratelimit-Limit", "X-Ratelimit-Remaining", "X-Ratelimit-Reset"} {
		if v := resp.Header.Get(name); v != "" {
			headers[name] = v
		}
	}
	return headers
}
