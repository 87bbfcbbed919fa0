package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
)

type Configuration struct {
	Shell         string `json:"shell" validate:"required"`
	StartShowing  bool   `json:"start_showing"`
	ExitOnFailure bool   `json:"exit_on_failure"`
	HookPrefix    string `json:"hook_prefix" validate:"required"`

	Typing Typing `json:"typing"`
	Colors Colors `json:"colors"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

// Typing controls the pace commands are typed out at. Each character waits a
// random time between MinDelay and MaxDelay.
type Typing struct {
	MinDelay Duration `json:"min_delay" validate:"gte=0"`
	MaxDelay Duration `json:"max_delay" validate:"gtefield=MinDelay"`
}

// Colors holds terminal color numbers, as passed to the setaf capability.
type Colors struct {
	Comment  int `json:"comment" validate:"gte=0,lte=255"`  // Shell comments.
	Warning  int `json:"warning" validate:"gte=0,lte=255"`  // Playback notices like "...skipping".
	Header   int `json:"header" validate:"gte=0,lte=255"`   // Markdown headers.
	Emphasis int `json:"emphasis" validate:"gte=0,lte=255"` // Markdown *emphasis*.
	Strong   int `json:"strong" validate:"gte=0,lte=255"`   // Markdown **strong** text.
	Code     int `json:"code" validate:"gte=0,lte=255"`     // Markdown `code` and _underscore_ spans.
}

// Duration is a time.Duration written in configuration files as a string
// like "10ms".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"10ms\": %w", err)
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Default returns the built-in configuration.
func Default() *Configuration {
	return defaultConfig()
}

// DefaultData returns the contents of the built-in config.yaml.
func DefaultData() []byte {
	return append([]byte(nil), defaultConfigData...)
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
