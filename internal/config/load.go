package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment overrides. Nested keys are separated by a
// double underscore: DATENORM_STORAGE__DB__DSN sets storage.db.dsn.
const EnvPrefix = "DATENORM_"

// keyDelim separates koanf path segments. Header names in
// parser.options.header_map routinely contain dots, so "." cannot be used.
const keyDelim = "::"

// Load builds a Pipeline from, in increasing precedence: Defaults, the JSON
// file at path (skipped when path is empty) and DATENORM_* variables.
//
// Errors:
//   - file read or JSON decode failures
//   - type mismatches reported by the decoder
//
// Load does not validate; call ValidatePipeline on the result.
func Load(path string) (Pipeline, error) {
	k := koanf.New(keyDelim)

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return Pipeline{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		raw, err := readJSONFile(path)
		if err != nil {
			return Pipeline{}, err
		}
		if err := k.Load(rawMap(raw), nil); err != nil {
			return Pipeline{}, fmt.Errorf("apply config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(keyDelim, env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
	}), nil); err != nil {
		return Pipeline{}, fmt.Errorf("load environment: %w", err)
	}

	var p Pipeline
	if err := k.UnmarshalWithConf("", &p, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &p,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return Pipeline{}, fmt.Errorf("decode config: %w", err)
	}
	return p, nil
}

// envKey maps DATENORM_STORAGE__DB__DSN to storage::db::dsn. Variables
// without the prefix are dropped.
func envKey(key, value string) (string, any) {
	if !strings.HasPrefix(key, EnvPrefix) {
		return "", nil
	}
	path := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if path == "" {
		return "", nil
	}
	return strings.ReplaceAll(path, "__", keyDelim), value
}

func readJSONFile(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return raw, nil
}

// rawMap is a koanf.Provider over an already decoded document.
type rawMap map[string]any

func (r rawMap) Read() (map[string]any, error) { return r, nil }

func (r rawMap) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("ReadBytes not implemented")
}
