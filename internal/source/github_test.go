package source_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arc-self/infosweep/internal/model"
	"github.com/arc-self/infosweep/internal/source"
)

type routedSession struct {
	responses map[string]routedResponse
}

type routedResponse struct {
	body   []byte
	status int
}

func (r *routedSession) Get(ctx context.Context, url string) ([]byte, int, error) {
	resp, ok := r.responses[url]
	if !ok {
		return nil, 404, nil
	}
	return resp.body, resp.status, nil
}

func (r *routedSession) GetJSON(ctx context.Context, url string, dest any) error { return nil }

func TestGithub_FetchEvents_EnqueuesOneCompositePerPushFanningOutChildrenInMatcher(t *testing.T) {
	const eventsURL = "https://api.github.com/events"
	const commitURL = "https://api.github.com/repos/x/commits/abc"

	session := &routedSession{responses: map[string]routedResponse{
		eventsURL: {status: 200, body: []byte(`[
			{"id":"1","type":"PushEvent","actor":{"login":"dev"},"payload":{"commits":[{"sha":"abc","url":"` + commitURL + `"}]}},
			{"id":"2","type":"WatchEvent"}
		]`)},
		commitURL: {status: 200, body: []byte(`{"files":[
			{"raw_url":"https://raw/main.go","filename":"main.go"},
			{"raw_url":"https://raw/logo.png","filename":"logo.png"}
		]}`)},
		"https://raw/main.go": {status: 200, body: []byte("package main")},
	}}

	src := source.NewGithub(source.GithubConfig{}, session, zap.NewNop())
	events, err := src.FetchEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1, "a push with N commits is a single queue item, not one per changed file")

	composite, ok := events[0].(*model.CompositeEvent)
	require.True(t, ok)
	assert.Equal(t, "dev", composite.Creator())

	fanned := composite.FanOut()
	require.Len(t, fanned, 1, "logo.png is blacklisted, main.go is not")
	assert.Equal(t, "main.go", fanned[0].Filename())
	assert.Equal(t, "1/main.go", fanned[0].SourceID())
	assert.Equal(t, []byte("package main"), fanned[0].Content())
}

func TestGithub_FetchEvents_NonPushEventsIgnored(t *testing.T) {
	const eventsURL = "https://api.github.com/events"
	session := &routedSession{responses: map[string]routedResponse{
		eventsURL: {status: 200, body: []byte(`[{"id":"2","type":"WatchEvent"}]`)},
	}}

	src := source.NewGithub(source.GithubConfig{}, session, zap.NewNop())
	events, err := src.FetchEvents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
}
