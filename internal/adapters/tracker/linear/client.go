package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nizamiq/cadence/internal/planner"
)

// defaultEndpoint is the public Linear GraphQL endpoint.
const defaultEndpoint = "https://api.linear.app/graphql"

// Client is a minimal Linear GraphQL client scoped to one team.
type Client struct {
	apiKey     string
	teamKey    string
	endpoint   string
	httpClient *http.Client
	clock      func() time.Time
}

// NewClient constructs a Linear client for one team.
func NewClient(apiKey, teamKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		teamKey:    teamKey,
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{},
		clock:      time.Now,
	}
}

// WithEndpoint overrides the GraphQL endpoint, used by tests and proxies.
func (c *Client) WithEndpoint(endpoint string) *Client {
	if strings.TrimSpace(endpoint) != "" {
		c.endpoint = endpoint
	}
	return c
}

// WithHTTPClient overrides the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// graphqlEnvelope is the standard GraphQL response wrapper.
type graphqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// do posts one GraphQL document and decodes data into out.
func (c *Client) do(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return fmt.Errorf("encode graphql request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build graphql request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post graphql: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graphql status %d", resp.StatusCode)
	}
	var envelope graphqlEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode graphql response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode graphql data: %w", err)
		}
	}
	return nil
}

const teamQuery = `
query Teams {
	teams {
		nodes {
			id
			key
			name
		}
	}
}`

const cyclesQuery = `
query Cycles($teamId: String!) {
	team(id: $teamId) {
		activeCycle {
			id
			name
			number
			startsAt
			endsAt
			scopeHistory
			completedScopeHistory
			issueCountHistory
			completedIssueCountHistory
		}
		cycles(first: 5, filter: { isActive: { eq: false }, isPast: { eq: true } }) {
			nodes {
				id
				completedScopeHistory
			}
		}
	}
}`

const cycleIssuesQuery = `
query CycleIssues($cycleId: String!) {
	issues(filter: { cycle: { id: { eq: $cycleId } } }, first: 250) {
		nodes {
			id
			identifier
			title
			priority
			estimate
			state { name type }
			labels { nodes { name } }
			relations { nodes { type relatedIssue { id state { type } } } }
			createdAt
			updatedAt
			startedAt
			completedAt
		}
	}
}`

const backlogQuery = `
query Backlog($teamId: String!) {
	issues(
		filter: {
			team: { id: { eq: $teamId } }
			state: { type: { in: ["backlog", "unstarted", "triage"] } }
			cycle: { null: true }
		}
		first: 250
	) {
		nodes {
			id
			identifier
			title
			priority
			estimate
			state { name type }
			labels { nodes { name } }
			relations { nodes { type relatedIssue { id state { type } } } }
			createdAt
			updatedAt
			startedAt
			completedAt
		}
	}
}`

const commentMutation = `
mutation AnnotateIssue($input: CommentCreateInput!) {
	commentCreate(input: $input) {
		success
	}
}`

const assignCycleMutation = `
mutation AssignCycle($id: String!, $input: IssueUpdateInput!) {
	issueUpdate(id: $id, input: $input) {
		success
	}
}`

const planningIssueMutation = `
mutation CreatePlanningIssue($input: IssueCreateInput!) {
	issueCreate(input: $input) {
		success
	}
}`

// resolveTeamID looks up the team UUID for the configured team key.
func (c *Client) resolveTeamID(ctx context.Context) (string, error) {
	var data struct {
		Teams struct {
			Nodes []struct {
				ID  string `json:"id"`
				Key string `json:"key"`
			} `json:"nodes"`
		} `json:"teams"`
	}
	if err := c.do(ctx, teamQuery, nil, &data); err != nil {
		return "", err
	}
	for _, team := range data.Teams.Nodes {
		if strings.EqualFold(team.Key, c.teamKey) {
			return team.ID, nil
		}
	}
	return "", fmt.Errorf("team %q not found", c.teamKey)
}

// FetchSnapshot pulls the active cycle, its issues and the team backlog as
// one immutable snapshot. Issues missing required fields are dropped into the
// skip list rather than failing the fetch.
func (c *Client) FetchSnapshot(ctx context.Context) (planner.Snapshot, error) {
	teamID, err := c.resolveTeamID(ctx)
	if err != nil {
		return planner.Snapshot{}, err
	}

	var cycleData struct {
		Team struct {
			ActiveCycle *gqlCycle `json:"activeCycle"`
			Cycles      struct {
				Nodes []struct {
					CompletedScopeHistory []float64 `json:"completedScopeHistory"`
				} `json:"nodes"`
			} `json:"cycles"`
		} `json:"team"`
	}
	if err := c.do(ctx, cyclesQuery, map[string]any{"teamId": teamID}, &cycleData); err != nil {
		return planner.Snapshot{}, err
	}
	if cycleData.Team.ActiveCycle == nil {
		return planner.Snapshot{}, fmt.Errorf("team %q has no active cycle", c.teamKey)
	}

	cycle, err := mapCycle(*cycleData.Team.ActiveCycle)
	if err != nil {
		return planner.Snapshot{}, err
	}
	for _, past := range cycleData.Team.Cycles.Nodes {
		if n := len(past.CompletedScopeHistory); n > 0 {
			cycle.VelocitySamples = append(cycle.VelocitySamples, past.CompletedScopeHistory[n-1])
		}
	}

	snapshot := planner.Snapshot{Cycle: cycle, FetchedAt: c.clock().UTC()}

	var cycleIssues struct {
		Issues struct {
			Nodes []gqlIssue `json:"nodes"`
		} `json:"issues"`
	}
	if err := c.do(ctx, cycleIssuesQuery, map[string]any{"cycleId": cycle.ID}, &cycleIssues); err != nil {
		return planner.Snapshot{}, err
	}
	snapshot.CycleItems, snapshot.Skipped = mapIssues(cycleIssues.Issues.Nodes, snapshot.Skipped)

	var backlog struct {
		Issues struct {
			Nodes []gqlIssue `json:"nodes"`
		} `json:"issues"`
	}
	if err := c.do(ctx, backlogQuery, map[string]any{"teamId": teamID}, &backlog); err != nil {
		return planner.Snapshot{}, err
	}
	snapshot.Backlog, snapshot.Skipped = mapIssues(backlog.Issues.Nodes, snapshot.Skipped)

	return snapshot, nil
}
