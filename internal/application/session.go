package application

import (
	"context"
	"errors"
	"raceresults/internal/scrapers/ironman"
)

type LoginFunc func(ctx context.Context, eventUrl string) (ironman.Session, error)

// ResolveSession returns the configured session if it is complete, otherwise
// it logs into the tracker at eventUrl. Configured values take precedence
// over the ones found by logging in.
func ResolveSession(ctx context.Context, configured ironman.Session, eventUrl string, login LoginFunc) (ironman.Session, error) {
	if configured.Event != "" && configured.Credentials.Valid() {
		return configured, nil
	}
	if eventUrl == "" {
		return ironman.Session{}, errors.New("no event and credentials configured and no tracker url to log into")
	}

	session, err := login(ctx, eventUrl)
	if err != nil {
		return ironman.Session{}, err
	}
	if configured.Event != "" {
		session.Event = configured.Event
	}
	if configured.Credentials.AppId != "" {
		session.Credentials.AppId = configured.Credentials.AppId
	}
	if configured.Credentials.Token != "" {
		session.Credentials.Token = configured.Credentials.Token
	}

	if session.Event == "" {
		return ironman.Session{}, errors.New("could not determine the event of the tracker")
	}
	if !session.Credentials.Valid() {
		return ironman.Session{}, errors.New("could not determine the app id and token of the tracker")
	}
	return session, nil
}
