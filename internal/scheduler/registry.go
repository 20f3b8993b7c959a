package scheduler

import (
	"time"

	"github.com/arc-self/infosweep/internal/indexcache"
	"github.com/arc-self/infosweep/internal/source"
)

// RegisterDefaults wires the four built-in source types into s,
// mirroring SourceFactory's constructor: gist, pastebin,
// github-public-events, csv.
func RegisterDefaults(s *Scheduler) {
	s.Register("gist", func(spec SourceSpec, deps Deps) (source.Source, error) {
		session := DefaultSession(spec.TimeoutSec, spec.OAuthToken)
		cache := indexcache.New(deps.Pool, "gist")
		return source.NewGist(source.GistConfig{
			OAuthToken: spec.OAuthToken,
			Timeout:    secondsOrDefault(spec.TimeoutSec),
			FanoutCap:  spec.FanoutCap,
		}, session, cache, deps.Logger), nil
	})

	s.Register("pastebin", func(spec SourceSpec, deps Deps) (source.Source, error) {
		session := DefaultSession(spec.TimeoutSec, "")
		return source.NewPastebin(source.PastebinConfig{
			DevKey:    spec.DevKey,
			Timeout:   secondsOrDefault(spec.TimeoutSec),
			FanoutCap: spec.FanoutCap,
		}, session, deps.Logger), nil
	})

	s.Register("github-public-events", func(spec SourceSpec, deps Deps) (source.Source, error) {
		session := DefaultSession(spec.TimeoutSec, spec.OAuthToken)
		return source.NewGithub(source.GithubConfig{
			OAuthToken: spec.OAuthToken,
			Timeout:    secondsOrDefault(spec.TimeoutSec),
			FanoutCap:  spec.FanoutCap,
		}, session, deps.Logger), nil
	})

	s.Register("csv", func(spec SourceSpec, deps Deps) (source.Source, error) {
		return source.NewCSV(source.CSVConfig{
			Path:    spec.Path,
			Timeout: secondsOrDefault(spec.TimeoutSec),
		}, deps.Logger), nil
	})
}

func secondsOrDefault(sec int) time.Duration {
	if sec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(sec) * time.Second
}
