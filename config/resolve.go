package config

import (
	"os"
	"reflect"

	"github.com/goccy/go-yaml"
	"github.com/habiliai/memoryd/errors"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
)

// FileEnv names the optional YAML config file. Each config type reads its own
// top-level section from it.
const FileEnv = "MEMORYD_CONFIG"

// resolveConfig layers the YAML file section, dotenv files and the process
// environment over the defaults already present in config.
func resolveConfig[T any](config *T, section string, testing bool) error {
	if config == nil {
		return errors.New("config is nil")
	}

	if filename := os.Getenv(FileEnv); filename != "" {
		if err := loadSection(filename, section, config); err != nil {
			return err
		}
	}

	var envFiles []string
	if testing {
		filename := ".env.test"
		if v := os.Getenv("ENV_TEST_FILE"); v != "" {
			filename = v
		}
		if _, err := os.Stat(filename); err == nil {
			envFiles = append(envFiles, filename)
		}
	}
	if _, err := os.Stat(".env"); err == nil {
		envFiles = append(envFiles, ".env")
	}
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return errors.Wrapf(err, "failed to load %v", envFiles)
		}
	}

	return decodeEnv(config)
}

func loadSection(filename, section string, out any) error {
	yamlBytes, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to read file %s", filename)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(yamlBytes, &doc); err != nil {
		return errors.Wrapf(err, "failed to unmarshal file %s", filename)
	}
	sec, ok := doc[section]
	if !ok || sec == nil {
		return nil
	}

	sectionBytes, err := yaml.Marshal(sec)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal section %s", section)
	}
	if err := yaml.Unmarshal(sectionBytes, out); err != nil {
		return errors.Wrapf(err, "failed to unmarshal section %s of %s", section, filename)
	}

	return nil
}

// decodeEnv copies every environment variable named by an `env` tag into the
// matching field, converting strings with mapstructure's weak typing.
func decodeEnv(out any) error {
	values := map[string]any{}
	collectEnv(reflect.TypeOf(out).Elem(), values)
	if len(values) == 0 {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "env",
		WeaklyTypedInput: true,
		Squash:           true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to create env decoder")
	}
	if err := decoder.Decode(values); err != nil {
		return errors.Wrapf(err, "failed to decode environment")
	}

	return nil
}

func collectEnv(t reflect.Type, values map[string]any) {
	for i := range t.NumField() {
		field := t.Field(i)
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			collectEnv(field.Type, values)
			continue
		}
		name := field.Tag.Get("env")
		if name == "" {
			continue
		}
		if v, ok := os.LookupEnv(name); ok {
			values[name] = v
		}
	}
}
