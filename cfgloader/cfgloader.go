// Package cfgloader loads and validates configuration at the start of an application.
//
// It is used by hosts to build a notifier.Config from ./config/${ENVIRONMENT}.yaml,
// but works for any yaml-tagged struct.
package cfgloader

import (
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/code19m/errx"
	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rise-and-shine/errnotify/observability/logger"
	"github.com/rise-and-shine/errnotify/val"
)

const (
	EnvProduction = "production"
	EnvStaging    = "staging"
	EnvDev        = "dev"
	EnvLocal      = "local"
	EnvTest       = "test"
)

const envVariable = "ENVIRONMENT"

const (
	CodePointerConfig  = "CFG_POINTER_CONFIG"
	CodeInvalidEnv     = "CFG_INVALID_ENVIRONMENT"
	CodeFileNotFound   = "CFG_FILE_NOT_FOUND"
	CodeReadFailed     = "CFG_READ_FAILED"
	CodeUnmarshal      = "CFG_UNMARSHAL_FAILED"
	CodeDefaultsFailed = "CFG_DEFAULTS_FAILED"
	CodeInvalidConfig  = "CFG_INVALID_CONFIG"
)

// Load loads and validates configuration from a YAML file based on the ENVIRONMENT variable.
// The files must be named in the format ${ENVIRONMENT}.yaml and located in the config
// directory (./config unless WithDir is given).
//
// ${VAR} references in the file are expanded from the process environment, after
// an optional .env file has been loaded.
//
// Default values for configuration fields can be set using the `default` struct tag.
// These values are applied before validation if the corresponding fields are not
// explicitly defined in the YAML file.
//
// Validations are done by package val using go-playground/validator tags.
// See https://pkg.go.dev/github.com/go-playground/validator/v10 for more information.
//
// Example:
//
//	type Config struct {
//	    APIKey   string `yaml:"api_key" validate:"required" mask:"true"`
//	    Endpoint string `yaml:"endpoint" default:"notify.bugsnag.com"`
//	}
func Load[T any](opts ...Option) (T, error) {
	var config T

	o := applyOptions(opts)

	if reflect.ValueOf(&config).Elem().Kind() == reflect.Pointer {
		return config, errx.New("[cfgloader]: arg config must not be a pointer", errx.WithCode(CodePointerConfig))
	}

	_ = godotenv.Load()

	env, err := defineEnvironment(o)
	if err != nil {
		return config, err
	}

	configPath := filepath.Join(o.Dir, env+".yaml")

	data, err := readConfigFile(configPath)
	if err != nil {
		return config, err
	}

	data = []byte(os.ExpandEnv(string(data)))

	if err = yaml.Unmarshal(data, &config); err != nil {
		return config, errx.Wrap(err, errx.WithCode(CodeUnmarshal), errx.WithDetails(errx.D{"env": env}))
	}

	if err = defaults.Set(&config); err != nil {
		return config, errx.Wrap(err, errx.WithCode(CodeDefaultsFailed))
	}

	if err = validateConfig(&config, env); err != nil {
		return config, err
	}

	if !o.Silent {
		printConfig(&config)
	}

	return config, nil
}

// MustLoad is like Load but logs the error and exits the process on failure.
func MustLoad[T any](opts ...Option) T {
	config, err := Load[T](opts...)
	if err != nil {
		logger.Errorx(err)
		_ = logger.Sync()
		os.Exit(1)
	}
	return config
}

func defineEnvironment(o Options) (string, error) {
	env := o.Environment
	if env == "" {
		env = os.Getenv(envVariable)
	}
	choices := []string{EnvProduction, EnvStaging, EnvDev, EnvLocal, EnvTest}
	if !slices.Contains(choices, env) {
		return "", errx.New(
			"[cfgloader]: ENVIRONMENT env variable is not set or invalid",
			errx.WithCode(CodeInvalidEnv),
			errx.WithDetails(errx.D{"value": env, "choices": strings.Join(choices, ", ")}),
		)
	}
	return env, nil
}

func readConfigFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errx.New(
			"[cfgloader]: config file not found, make sure that the yaml file exists for each environment",
			errx.WithCode(CodeFileNotFound),
			errx.WithDetails(errx.D{"path": path}),
		)
	}
	if err != nil {
		return nil, errx.Wrap(err, errx.WithCode(CodeReadFailed), errx.WithDetails(errx.D{"path": path}))
	}
	return data, nil
}

func validateConfig(config any, env string) error {
	fields, err := val.Struct(config)
	if err != nil {
		return errx.Wrap(err, errx.WithCode(CodeInvalidConfig))
	}
	if len(fields) > 0 {
		return errx.New(
			"[cfgloader]: invalid fields in config",
			errx.WithCode(CodeInvalidConfig),
			errx.WithFields(fields),
			errx.WithDetails(errx.D{"env": env}),
		)
	}
	return nil
}
