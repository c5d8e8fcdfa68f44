package globals

import (
	"context"
	"raceresults/internal/components/telemetry"
)

type RtrtConfig struct {
	AppId string `json:"app_id"`
	Token string `json:"token"`
	Event string `json:"event"`
	// TrackerUrl is logged into when the event or credentials are missing.
	TrackerUrl string `json:"tracker_url"`
	// StripFromPoint is removed from point names before they are matched to legs.
	StripFromPoint string `json:"strip_from_point"`
}

type MikatimingConfig struct {
	BaseUrl        string `json:"base_url"`
	Year           int    `json:"year"`
	Event          string `json:"event"`
	EventMainGroup string `json:"event_main_group"`
}

// Config is the contents of racescrape.json5.
type Config struct {
	Telemetry  telemetry.Config `json:"telemetry"`
	CachePath  string           `json:"cache_path"`
	OutputDir  string           `json:"output_dir"`
	Rtrt       RtrtConfig       `json:"rtrt"`
	Mikatiming MikatimingConfig `json:"mikatiming"`
}

type ctxKey int

const key ctxKey = 0

type Value struct {
	Config    Config
	Telemetry telemetry.API
}

func Set(ctx context.Context, value *Value) context.Context {
	return context.WithValue(ctx, key, value)
}

func Get(ctx context.Context) *Value {
	return ctx.Value(key).(*Value)
}
